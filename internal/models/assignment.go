package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Assignment is owned by the tutor who created it. Students holds usernames.
type Assignment struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Description string             `json:"description" bson:"description"`
	Tutor       string             `json:"tutor" bson:"tutor"`
	Students    []string           `json:"students" bson:"students"`
	PublishedAt time.Time          `json:"publishedAt" bson:"published_at"`
	Deadline    time.Time          `json:"deadlineDate" bson:"deadline"`
	Status      AssignmentStatus   `json:"status" bson:"status"`
}

// ScopedTo returns a copy of the assignment carrying only the given students.
func (a Assignment) ScopedTo(students []string) Assignment {
	scoped := a
	scoped.Students = append([]string(nil), students...)
	return scoped
}

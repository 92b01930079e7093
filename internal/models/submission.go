package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Submission is unique per (AssignmentID, StudentUsername).
type Submission struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AssignmentID    primitive.ObjectID `json:"assignmentId" bson:"assignment_id"`
	StudentUsername string             `json:"studentUsername" bson:"student_username"`
	TutorUsername   string             `json:"tutorUsername" bson:"tutor_username"`
	SubmittedAt     *time.Time         `json:"submittedAt,omitempty" bson:"submitted_at,omitempty"`
	Status          SubmissionStatus   `json:"status" bson:"status"`
	Remark          string             `json:"remark" bson:"remark"`
}

// AssignmentSubmission is the denormalized pair embedded in a student's user document.
type AssignmentSubmission struct {
	Assignment Assignment `json:"assignment" bson:"assignment"`
	Submission Submission `json:"submission" bson:"submission"`
}

// Equivalent compares two projection entries field by field. Assignment
// status is derived on read and not compared. Timestamps are compared with
// Equal since stores drop monotonic readings and locations.
func (as AssignmentSubmission) Equivalent(other AssignmentSubmission) bool {
	a, b := as.Assignment, other.Assignment
	if a.ID != b.ID || a.Description != b.Description || a.Tutor != b.Tutor {
		return false
	}
	if !a.PublishedAt.Equal(b.PublishedAt) || !a.Deadline.Equal(b.Deadline) {
		return false
	}
	if len(a.Students) != len(b.Students) {
		return false
	}
	for i := range a.Students {
		if a.Students[i] != b.Students[i] {
			return false
		}
	}

	s, t := as.Submission, other.Submission
	if s.ID != t.ID || s.AssignmentID != t.AssignmentID || s.StudentUsername != t.StudentUsername ||
		s.TutorUsername != t.TutorUsername || s.Status != t.Status || s.Remark != t.Remark {
		return false
	}
	if (s.SubmittedAt == nil) != (t.SubmittedAt == nil) {
		return false
	}
	return s.SubmittedAt == nil || s.SubmittedAt.Equal(*t.SubmittedAt)
}

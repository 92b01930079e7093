package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID                    primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	Username              string                 `json:"username" bson:"username"`
	Role                  Role                   `json:"role" bson:"role"`
	PasswordHash          []byte                 `json:"-" bson:"password_hash"`
	AssignmentSubmissions []AssignmentSubmission `json:"assignmentSubmissions,omitempty" bson:"assignment_submissions,omitempty"`
}

// ProjectionIndex returns the position of the projection entry for assignmentID, or -1.
func (u *User) ProjectionIndex(assignmentID primitive.ObjectID) int {
	for i, as := range u.AssignmentSubmissions {
		if as.Assignment.ID == assignmentID {
			return i
		}
	}
	return -1
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

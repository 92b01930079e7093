package models

import "time"

// Data Transfer Objects

type AuthenticateRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type AuthenticateResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	Role        string `json:"role"`
}

// AssignmentRequest is used both to create an assignment and to patch one.
// On update, nil fields keep the stored value.
type AssignmentRequest struct {
	Description *string    `json:"description"`
	Students    []string   `json:"students" validate:"omitempty,dive,required"`
	PublishedAt *time.Time `json:"publishedAt"`
	Deadline    *time.Time `json:"deadlineDate"`
}

type CreateSubmissionRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required,len=24,hexadecimal"`
	Remark       string `json:"remark" validate:"max=2000"`
}

type ReconcileReport struct {
	AssignmentID        string    `json:"assignmentId"`
	AssignmentExists    bool      `json:"assignmentExists"`
	SubmissionsCreated  int       `json:"submissionsCreated"`
	SubmissionsRemoved  int       `json:"submissionsRemoved"`
	ProjectionsRepaired int       `json:"projectionsRepaired"`
	ProjectionsRemoved  int       `json:"projectionsRemoved"`
	ReconciledAt        time.Time `json:"reconciledAt"`
}

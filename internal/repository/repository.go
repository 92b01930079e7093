package repository

import (
	"context"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Finders return (nil, nil) when no document matches.

type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error)
	GetByTutor(ctx context.Context, tutor string) ([]models.Assignment, error)
	Replace(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type SubmissionRepository interface {
	GetByAssignmentAndStudent(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.Submission, error)
	GetByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error)
	// InsertMany skips documents whose (assignment, student) pair already exists.
	InsertMany(ctx context.Context, submissions []models.Submission) error
	Replace(ctx context.Context, submission *models.Submission) error
	DeleteByAssignmentAndStudents(ctx context.Context, assignmentID primitive.ObjectID, students []string) (int, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	// GetByProjectedAssignment returns users holding a projection entry for the assignment.
	GetByProjectedAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.User, error)
	Replace(ctx context.Context, user *models.User) error
	// ReplaceMany is applied per document; a failure may leave earlier documents written.
	ReplaceMany(ctx context.Context, users []models.User) error
}

type Repositories struct {
	Assignments AssignmentRepository
	Submissions SubmissionRepository
	Users       UserRepository
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/repository"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AssignmentService interface {
	// ValidateAssignment returns a copy with the derived status set.
	ValidateAssignment(assignment *models.Assignment) (*models.Assignment, error)
	// DeriveStatus recomputes the status without checking the other fields.
	DeriveStatus(assignment models.Assignment) models.Assignment
	Get(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error)
	GetOwned(ctx context.Context, id primitive.ObjectID, tutor string) (*models.Assignment, error)
	GetByTutor(ctx context.Context, tutor string) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Replace(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	now            func() time.Time
	logger         zerolog.Logger
}

func NewAssignmentService(assignmentRepo repository.AssignmentRepository, now func() time.Time, logger zerolog.Logger) AssignmentService {
	if now == nil {
		now = time.Now
	}
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		now:            now,
		logger:         logger,
	}
}

func (s *assignmentService) ValidateAssignment(assignment *models.Assignment) (*models.Assignment, error) {
	validated := *assignment

	if strings.TrimSpace(validated.Description) == "" {
		return nil, ErrInvalidDescription
	}
	if validated.PublishedAt.IsZero() {
		return nil, ErrInvalidPublishedAt
	}

	validated = s.DeriveStatus(validated)

	if validated.Deadline.IsZero() || !validated.Deadline.After(validated.PublishedAt) {
		return nil, ErrInvalidDeadline
	}
	if len(validated.Students) == 0 {
		return nil, ErrNoStudents
	}

	return &validated, nil
}

func (s *assignmentService) DeriveStatus(assignment models.Assignment) models.Assignment {
	if assignment.PublishedAt.After(s.now()) {
		assignment.Status = models.AssignmentStatusScheduled
	} else {
		assignment.Status = models.AssignmentStatusOngoing
	}
	return assignment
}

// Get returns (nil, nil) when the assignment does not exist.
func (s *assignmentService) Get(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if assignment == nil {
		return nil, nil
	}

	derived := s.DeriveStatus(*assignment)
	return &derived, nil
}

func (s *assignmentService) GetOwned(ctx context.Context, id primitive.ObjectID, tutor string) (*models.Assignment, error) {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if assignment == nil || assignment.Tutor != tutor {
		return nil, ErrNotFoundOrForbidden
	}
	return assignment, nil
}

func (s *assignmentService) GetByTutor(ctx context.Context, tutor string) ([]models.Assignment, error) {
	assignments, err := s.assignmentRepo.GetByTutor(ctx, tutor)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}

	for i := range assignments {
		assignments[i] = s.DeriveStatus(assignments[i])
	}
	return assignments, nil
}

func (s *assignmentService) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID.IsZero() {
		assignment.ID = primitive.NewObjectID()
	}

	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID.Hex()).
		Str("tutor", assignment.Tutor).
		Int("students", len(assignment.Students)).
		Msg("Assignment created")

	return nil
}

func (s *assignmentService) Replace(ctx context.Context, assignment *models.Assignment) error {
	if err := s.assignmentRepo.Replace(ctx, assignment); err != nil {
		return fmt.Errorf("failed to replace assignment: %w", err)
	}
	return nil
}

func (s *assignmentService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.assignmentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}

	s.logger.Info().Str("assignment_id", id.Hex()).Msg("Assignment deleted")
	return nil
}

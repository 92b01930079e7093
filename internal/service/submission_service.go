package service

import (
	"context"
	"fmt"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/repository"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubmissionService interface {
	// CreateBatch inserts the pairs that do not exist yet and returns the whole
	// requested list, with stored rows in place of pairs that already existed.
	CreateBatch(ctx context.Context, submissions []models.Submission) ([]models.Submission, error)
	RemoveBatch(ctx context.Context, assignmentID primitive.ObjectID, students []string) (int, error)
	GetByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.Submission, error)
	ValidateSubmissionStatus(submission models.Submission, deadline time.Time) models.Submission
	UpdateOne(ctx context.Context, submission *models.Submission) error
}

type submissionService struct {
	submissionRepo repository.SubmissionRepository
	now            func() time.Time
	logger         zerolog.Logger
}

func NewSubmissionService(submissionRepo repository.SubmissionRepository, now func() time.Time, logger zerolog.Logger) SubmissionService {
	if now == nil {
		now = time.Now
	}
	return &submissionService{
		submissionRepo: submissionRepo,
		now:            now,
		logger:         logger,
	}
}

func (s *submissionService) CreateBatch(ctx context.Context, submissions []models.Submission) ([]models.Submission, error) {
	result := make([]models.Submission, 0, len(submissions))
	var missing []models.Submission
	var missingAt []int

	for _, submission := range submissions {
		existing, err := s.submissionRepo.GetByAssignmentAndStudent(ctx, submission.AssignmentID, submission.StudentUsername)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing submission: %w", err)
		}
		if existing != nil {
			result = append(result, *existing)
			continue
		}

		if submission.ID.IsZero() {
			submission.ID = primitive.NewObjectID()
		}
		missing = append(missing, submission)
		missingAt = append(missingAt, len(result))
		result = append(result, submission)
	}

	if len(missing) > 0 {
		if err := s.submissionRepo.InsertMany(ctx, missing); err != nil {
			return nil, fmt.Errorf("failed to insert submissions: %w", err)
		}

		// A pair inserted concurrently keeps the other writer's row.
		for _, i := range missingAt {
			stored, err := s.submissionRepo.GetByAssignmentAndStudent(ctx, result[i].AssignmentID, result[i].StudentUsername)
			if err != nil {
				return nil, fmt.Errorf("failed to reload submission: %w", err)
			}
			if stored != nil && stored.ID != result[i].ID {
				s.logger.Debug().
					Str("assignment_id", stored.AssignmentID.Hex()).
					Str("student", stored.StudentUsername).
					Msg("Submission inserted concurrently, using stored row")
				result[i] = *stored
			}
		}
	}

	s.logger.Debug().
		Int("requested", len(submissions)).
		Int("inserted", len(missing)).
		Msg("Submissions created")

	return result, nil
}

func (s *submissionService) RemoveBatch(ctx context.Context, assignmentID primitive.ObjectID, students []string) (int, error) {
	if len(students) == 0 {
		return 0, nil
	}

	deleted, err := s.submissionRepo.DeleteByAssignmentAndStudents(ctx, assignmentID, students)
	if err != nil {
		return 0, fmt.Errorf("failed to delete submissions: %w", err)
	}

	s.logger.Debug().
		Str("assignment_id", assignmentID.Hex()).
		Int("deleted", deleted).
		Msg("Submissions removed")

	return deleted, nil
}

func (s *submissionService) GetByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error) {
	submissions, err := s.submissionRepo.GetByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}
	return submissions, nil
}

// GetByAssignmentAndStudent returns (nil, nil) when the pair has no submission.
func (s *submissionService) GetByAssignmentAndStudent(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.Submission, error) {
	submission, err := s.submissionRepo.GetByAssignmentAndStudent(ctx, assignmentID, student)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return submission, nil
}

// ValidateSubmissionStatus promotes a pending submission past its deadline to
// OVERDUE. The result is never written back.
func (s *submissionService) ValidateSubmissionStatus(submission models.Submission, deadline time.Time) models.Submission {
	if submission.Status == models.SubmissionStatusPending && deadline.Before(s.now()) {
		submission.Status = models.SubmissionStatusOverdue
	}
	return submission
}

func (s *submissionService) UpdateOne(ctx context.Context, submission *models.Submission) error {
	if err := s.submissionRepo.Replace(ctx, submission); err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	return nil
}

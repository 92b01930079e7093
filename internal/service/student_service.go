package service

import (
	"context"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/service/integration"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StudentService interface {
	CreateSubmission(ctx context.Context, student string, assignmentID primitive.ObjectID, remark string) (*models.Submission, error)
	GetAssignmentSubmissionsByFilter(ctx context.Context, student, filterAssignments, filterSubmissions string) ([]models.AssignmentSubmission, error)
	GetSubmissionByAssignment(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.AssignmentSubmission, error)
	AuthenticateStudent(ctx context.Context, req *models.AuthenticateRequest) (*models.AuthenticateResponse, error)
}

type studentService struct {
	assignments AssignmentService
	submissions SubmissionService
	users       UserService
	tokens      TokenIssuer
	events      eventEmitter
	now         func() time.Time
	logger      zerolog.Logger
}

func NewStudentService(
	assignments AssignmentService,
	submissions SubmissionService,
	users UserService,
	tokens TokenIssuer,
	publisher integration.EventPublisher,
	now func() time.Time,
	logger zerolog.Logger,
) StudentService {
	if now == nil {
		now = time.Now
	}
	return &studentService{
		assignments: assignments,
		submissions: submissions,
		users:       users,
		tokens:      tokens,
		events:      eventEmitter{publisher: publisher, now: now, logger: logger},
		now:         now,
		logger:      logger,
	}
}

func (s *studentService) CreateSubmission(ctx context.Context, student string, assignmentID primitive.ObjectID, remark string) (*models.Submission, error) {
	submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, student)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, ErrNotAssigned
	}
	if submission.Status == models.SubmissionStatusSubmitted || submission.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}

	assignment, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}

	now := s.now()
	if now.After(assignment.Deadline) {
		submission.Status = models.SubmissionStatusOverdue
	} else {
		submission.Status = models.SubmissionStatusSubmitted
	}
	submission.SubmittedAt = &now
	submission.Remark = remark

	if err := s.submissions.UpdateOne(ctx, submission); err != nil {
		return nil, err
	}

	if err := s.syncProjection(ctx, student, *assignment, *submission); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("assignment_id", assignmentID.Hex()).
		Str("student", student).
		Str("status", submission.Status.String()).
		Msg("Submission received")

	s.events.emit(ctx, models.EventSubmissionSubmitted, *assignment, []string{student})

	return submission, nil
}

// syncProjection overwrites the submission snapshot in the student's list. A
// missing entry is recreated.
func (s *studentService) syncProjection(ctx context.Context, student string, assignment models.Assignment, submission models.Submission) error {
	user, err := s.users.GetByUsername(ctx, student)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Warn().Str("student", student).Msg("Student missing while syncing submission")
		return nil
	}

	if idx := user.ProjectionIndex(assignment.ID); idx != -1 {
		user.AssignmentSubmissions[idx].Submission = submission
	} else {
		user.AssignmentSubmissions = append(user.AssignmentSubmissions, models.AssignmentSubmission{
			Assignment: assignment.ScopedTo([]string{student}),
			Submission: submission,
		})
	}

	return s.users.Replace(ctx, user)
}

func (s *studentService) GetAssignmentSubmissionsByFilter(ctx context.Context, student, filterAssignments, filterSubmissions string) ([]models.AssignmentSubmission, error) {
	if !isValidFilter(filterAssignments, models.IsValidAssignmentStatus) ||
		!isValidFilter(filterSubmissions, models.IsValidSubmissionStatus) {
		return nil, ErrInvalidFilter
	}

	user, err := s.users.GetByUsername(ctx, student)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []models.AssignmentSubmission{}, nil
	}

	result := make([]models.AssignmentSubmission, 0, len(user.AssignmentSubmissions))
	for _, entry := range user.AssignmentSubmissions {
		entry = s.derive(entry)
		if matchesFilter(filterAssignments, entry.Assignment.Status.String()) &&
			matchesFilter(filterSubmissions, entry.Submission.Status.String()) {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *studentService) GetSubmissionByAssignment(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.AssignmentSubmission, error) {
	assignment, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}

	submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, student)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, ErrNotAssigned
	}

	entry := s.derive(models.AssignmentSubmission{
		Assignment: assignment.ScopedTo([]string{student}),
		Submission: *submission,
	})
	return &entry, nil
}

func (s *studentService) derive(entry models.AssignmentSubmission) models.AssignmentSubmission {
	entry.Assignment = s.assignments.DeriveStatus(entry.Assignment)
	entry.Submission = s.submissions.ValidateSubmissionStatus(entry.Submission, entry.Assignment.Deadline)
	return entry
}

func (s *studentService) AuthenticateStudent(ctx context.Context, req *models.AuthenticateRequest) (*models.AuthenticateResponse, error) {
	return authenticate(ctx, s.users, s.tokens, req, models.RoleStudent)
}

package service

import (
	"context"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/service/integration"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TutorService interface {
	CreateAssignment(ctx context.Context, tutor string, req *models.AssignmentRequest) (*models.Assignment, error)
	UpdateAssignment(ctx context.Context, id primitive.ObjectID, req *models.AssignmentRequest, tutor string) (*models.Assignment, error)
	DeleteAssignment(ctx context.Context, id primitive.ObjectID, tutor string) error
	GetAssignment(ctx context.Context, id primitive.ObjectID, tutor string) (*models.Assignment, error)
	GetAssignmentsByFilter(ctx context.Context, tutor, filter string) ([]models.Assignment, error)
	GetSubmissionsByAssignment(ctx context.Context, id primitive.ObjectID, tutor string) ([]models.Submission, error)
	AuthenticateTutor(ctx context.Context, req *models.AuthenticateRequest) (*models.AuthenticateResponse, error)
}

type tutorService struct {
	assignments AssignmentService
	submissions SubmissionService
	users       UserService
	tokens      TokenIssuer
	events      eventEmitter
	logger      zerolog.Logger
}

func NewTutorService(
	assignments AssignmentService,
	submissions SubmissionService,
	users UserService,
	tokens TokenIssuer,
	publisher integration.EventPublisher,
	now func() time.Time,
	logger zerolog.Logger,
) TutorService {
	if now == nil {
		now = time.Now
	}
	return &tutorService{
		assignments: assignments,
		submissions: submissions,
		users:       users,
		tokens:      tokens,
		events:      eventEmitter{publisher: publisher, now: now, logger: logger},
		logger:      logger,
	}
}

func (s *tutorService) CreateAssignment(ctx context.Context, tutor string, req *models.AssignmentRequest) (*models.Assignment, error) {
	draft := &models.Assignment{
		Tutor:    tutor,
		Students: uniqueStrings(req.Students),
	}
	if req.Description != nil {
		draft.Description = *req.Description
	}
	if req.PublishedAt != nil {
		draft.PublishedAt = *req.PublishedAt
	}
	if req.Deadline != nil {
		draft.Deadline = *req.Deadline
	}

	assignment, err := s.assignments.ValidateAssignment(draft)
	if err != nil {
		return nil, err
	}

	students, err := s.users.GetValidUsernames(ctx, assignment.Students)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, ErrNoStudents
	}
	if dropped := difference(assignment.Students, students); len(dropped) > 0 {
		s.logger.Warn().Strs("usernames", dropped).Msg("Dropping unregistered students from assignment")
	}
	assignment.Students = students

	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}

	if _, err := assignStudents(ctx, s.submissions, s.users, *assignment, students); err != nil {
		return nil, err
	}

	s.events.emit(ctx, models.EventAssignmentCreated, *assignment, students)

	return assignment, nil
}

func (s *tutorService) UpdateAssignment(ctx context.Context, id primitive.ObjectID, req *models.AssignmentRequest, tutor string) (*models.Assignment, error) {
	old, err := s.assignments.GetOwned(ctx, id, tutor)
	if err != nil {
		return nil, err
	}

	students := old.Students
	if req.Students != nil {
		if students, err = s.users.GetValidUsernames(ctx, req.Students); err != nil {
			return nil, err
		}
	}

	creating := difference(students, old.Students)
	deleting := difference(old.Students, students)
	updating := intersection(students, old.Students)

	merged := *old
	merged.Students = students
	if req.Description != nil {
		merged.Description = *req.Description
	}
	if err := mergeDates(&merged, req.PublishedAt, req.Deadline); err != nil {
		return nil, err
	}

	assignment, err := s.assignments.ValidateAssignment(&merged)
	if err != nil {
		return nil, err
	}

	if err := s.assignments.Replace(ctx, assignment); err != nil {
		return nil, err
	}

	if _, err := assignStudents(ctx, s.submissions, s.users, *assignment, creating); err != nil {
		return nil, err
	}

	if len(updating) > 0 {
		if err := s.users.SyncBatch(ctx, assignment.ScopedTo(updating), false); err != nil {
			return nil, err
		}
	}

	if len(deleting) > 0 {
		if err := s.users.SyncBatch(ctx, assignment.ScopedTo(deleting), true); err != nil {
			return nil, err
		}
		if _, err := s.submissions.RemoveBatch(ctx, assignment.ID, deleting); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID.Hex()).
		Int("added", len(creating)).
		Int("removed", len(deleting)).
		Int("kept", len(updating)).
		Msg("Assignment updated")

	s.events.emit(ctx, models.EventAssignmentUpdated, *assignment, assignment.Students)

	return assignment, nil
}

// mergeDates applies the supplied dates; the resulting pair must stay ordered.
func mergeDates(assignment *models.Assignment, publishedAt, deadline *time.Time) error {
	switch {
	case publishedAt != nil && deadline != nil:
		if !publishedAt.Before(*deadline) {
			return ErrInvalidDates
		}
		assignment.PublishedAt = *publishedAt
		assignment.Deadline = *deadline
	case publishedAt != nil:
		if !publishedAt.Before(assignment.Deadline) {
			return ErrInvalidDates
		}
		assignment.PublishedAt = *publishedAt
	case deadline != nil:
		if !assignment.PublishedAt.Before(*deadline) {
			return ErrInvalidDates
		}
		assignment.Deadline = *deadline
	}
	return nil
}

func (s *tutorService) DeleteAssignment(ctx context.Context, id primitive.ObjectID, tutor string) error {
	assignment, err := s.assignments.GetOwned(ctx, id, tutor)
	if err != nil {
		return err
	}

	if _, err := s.submissions.RemoveBatch(ctx, assignment.ID, assignment.Students); err != nil {
		return err
	}

	if err := s.users.SyncBatch(ctx, *assignment, true); err != nil {
		return err
	}

	if err := s.assignments.Delete(ctx, assignment.ID); err != nil {
		return err
	}

	s.events.emit(ctx, models.EventAssignmentDeleted, *assignment, assignment.Students)

	return nil
}

func (s *tutorService) GetAssignment(ctx context.Context, id primitive.ObjectID, tutor string) (*models.Assignment, error) {
	return s.assignments.GetOwned(ctx, id, tutor)
}

func (s *tutorService) GetAssignmentsByFilter(ctx context.Context, tutor, filter string) ([]models.Assignment, error) {
	if !isValidFilter(filter, models.IsValidAssignmentStatus) {
		return nil, ErrInvalidFilter
	}

	assignments, err := s.assignments.GetByTutor(ctx, tutor)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		if matchesFilter(filter, assignment.Status.String()) {
			filtered = append(filtered, assignment)
		}
	}
	return filtered, nil
}

func (s *tutorService) GetSubmissionsByAssignment(ctx context.Context, id primitive.ObjectID, tutor string) ([]models.Submission, error) {
	assignment, err := s.assignments.GetOwned(ctx, id, tutor)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.GetByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	for i := range submissions {
		submissions[i] = s.submissions.ValidateSubmissionStatus(submissions[i], assignment.Deadline)
	}
	return submissions, nil
}

func (s *tutorService) AuthenticateTutor(ctx context.Context, req *models.AuthenticateRequest) (*models.AuthenticateResponse, error) {
	return authenticate(ctx, s.users, s.tokens, req, models.RoleTutor)
}

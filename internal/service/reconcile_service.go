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

// ReconcileService repairs drift left behind by interrupted write sequences.
// The stored Assignment is the source of truth: submissions and projection
// entries are recreated, refreshed or removed to match it.
type ReconcileService interface {
	ReconcileAssignment(ctx context.Context, id primitive.ObjectID) (*models.ReconcileReport, error)
	// ReconcileOwned reconciles after checking that tutor owns the assignment.
	ReconcileOwned(ctx context.Context, id primitive.ObjectID, tutor string) (*models.ReconcileReport, error)
}

type reconcileService struct {
	assignments AssignmentService
	submissions SubmissionService
	users       UserService
	userRepo    repository.UserRepository
	now         func() time.Time
	logger      zerolog.Logger
}

func NewReconcileService(
	assignments AssignmentService,
	submissions SubmissionService,
	users UserService,
	userRepo repository.UserRepository,
	now func() time.Time,
	logger zerolog.Logger,
) ReconcileService {
	if now == nil {
		now = time.Now
	}
	return &reconcileService{
		assignments: assignments,
		submissions: submissions,
		users:       users,
		userRepo:    userRepo,
		now:         now,
		logger:      logger,
	}
}

func (s *reconcileService) ReconcileOwned(ctx context.Context, id primitive.ObjectID, tutor string) (*models.ReconcileReport, error) {
	if _, err := s.assignments.GetOwned(ctx, id, tutor); err != nil {
		return nil, err
	}
	return s.ReconcileAssignment(ctx, id)
}

func (s *reconcileService) ReconcileAssignment(ctx context.Context, id primitive.ObjectID) (*models.ReconcileReport, error) {
	report := &models.ReconcileReport{AssignmentID: id.Hex()}

	assignment, err := s.assignments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var students []string
	if assignment != nil {
		report.AssignmentExists = true
		if students, err = s.users.GetValidUsernames(ctx, assignment.Students); err != nil {
			return nil, err
		}
	}

	existing, err := s.submissions.GetByAssignment(ctx, id)
	if err != nil {
		return nil, err
	}

	var stored []string
	for _, submission := range existing {
		stored = append(stored, submission.StudentUsername)
	}

	if stale := difference(stored, students); len(stale) > 0 {
		if report.SubmissionsRemoved, err = s.submissions.RemoveBatch(ctx, id, stale); err != nil {
			return nil, err
		}
	}

	expected := make(map[string]models.AssignmentSubmission, len(students))
	if assignment != nil && len(students) > 0 {
		pending := make([]models.Submission, 0, len(students))
		for _, student := range students {
			pending = append(pending, models.Submission{
				AssignmentID:    id,
				StudentUsername: student,
				TutorUsername:   assignment.Tutor,
				Status:          models.SubmissionStatusPending,
			})
		}

		current, err := s.submissions.CreateBatch(ctx, pending)
		if err != nil {
			return nil, err
		}
		report.SubmissionsCreated = len(difference(students, stored))

		for _, submission := range current {
			expected[submission.StudentUsername] = models.AssignmentSubmission{
				Assignment: assignment.ScopedTo([]string{submission.StudentUsername}),
				Submission: submission,
			}
		}
	}

	if err := s.repairProjections(ctx, id, students, expected, report); err != nil {
		return nil, err
	}

	report.ReconciledAt = s.now()

	s.logger.Info().
		Str("assignment_id", report.AssignmentID).
		Bool("assignment_exists", report.AssignmentExists).
		Int("submissions_created", report.SubmissionsCreated).
		Int("submissions_removed", report.SubmissionsRemoved).
		Int("projections_repaired", report.ProjectionsRepaired).
		Int("projections_removed", report.ProjectionsRemoved).
		Msg("Assignment reconciled")

	return report, nil
}

// repairProjections leaves every assigned student with exactly one entry equal
// to the expected one, and every other student with none.
func (s *reconcileService) repairProjections(
	ctx context.Context,
	id primitive.ObjectID,
	students []string,
	expected map[string]models.AssignmentSubmission,
	report *models.ReconcileReport,
) error {
	holders, err := s.userRepo.GetByProjectedAssignment(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get projection holders: %w", err)
	}

	assigned, err := s.userRepo.GetByUsernames(ctx, students)
	if err != nil {
		return fmt.Errorf("failed to get students: %w", err)
	}

	candidates := make(map[primitive.ObjectID]models.User, len(holders)+len(assigned))
	var order []primitive.ObjectID
	for _, user := range append(holders, assigned...) {
		if _, seen := candidates[user.ID]; seen {
			continue
		}
		candidates[user.ID] = user
		order = append(order, user.ID)
	}

	var changed []models.User
	for _, userID := range order {
		user := candidates[userID]

		want, isAssigned := expected[user.Username]

		// The first entry for the assignment keeps its position; later
		// duplicates are dropped.
		var kept []models.AssignmentSubmission
		matching, replaced := 0, false
		for _, entry := range user.AssignmentSubmissions {
			if entry.Assignment.ID != id {
				kept = append(kept, entry)
				continue
			}
			matching++
			if isAssigned && matching == 1 {
				replaced = !entry.Equivalent(want)
				kept = append(kept, want)
			}
		}

		switch {
		case !isAssigned && matching == 0:
			continue
		case !isAssigned:
			report.ProjectionsRemoved++
		case matching == 1 && !replaced:
			continue
		case matching == 0:
			kept = append(kept, want)
			report.ProjectionsRepaired++
		default:
			report.ProjectionsRepaired++
		}

		if kept == nil {
			kept = []models.AssignmentSubmission{}
		}
		user.AssignmentSubmissions = kept
		changed = append(changed, user)
	}

	if len(changed) == 0 {
		return nil
	}
	if err := s.userRepo.ReplaceMany(ctx, changed); err != nil {
		return fmt.Errorf("failed to replace students: %w", err)
	}
	return nil
}

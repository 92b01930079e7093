package service

import (
	"context"
	"fmt"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/service/integration"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Generate(user *models.User) (string, error)
}

// assignStudents creates the pending submissions of students for assignment
// and appends the matching entries to their projections.
func assignStudents(
	ctx context.Context,
	submissions SubmissionService,
	users UserService,
	assignment models.Assignment,
	students []string,
) ([]models.Submission, error) {
	if len(students) == 0 {
		return nil, nil
	}

	pending := make([]models.Submission, 0, len(students))
	for _, student := range students {
		pending = append(pending, models.Submission{
			AssignmentID:    assignment.ID,
			StudentUsername: student,
			TutorUsername:   assignment.Tutor,
			Status:          models.SubmissionStatusPending,
		})
	}

	created, err := submissions.CreateBatch(ctx, pending)
	if err != nil {
		return nil, err
	}

	entries := make([]models.AssignmentSubmission, 0, len(created))
	for _, submission := range created {
		entries = append(entries, models.AssignmentSubmission{
			Assignment: assignment.ScopedTo([]string{submission.StudentUsername}),
			Submission: submission,
		})
	}

	if err := users.CreateProjections(ctx, entries); err != nil {
		return nil, err
	}

	return created, nil
}

func authenticate(
	ctx context.Context,
	users UserService,
	tokens TokenIssuer,
	req *models.AuthenticateRequest,
	role models.Role,
) (*models.AuthenticateResponse, error) {
	user, err := users.Authenticate(ctx, req.Username, req.Password, role)
	if err != nil {
		return nil, err
	}

	token, err := tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.AuthenticateResponse{
		AccessToken: token,
		UserID:      user.ID.Hex(),
		Role:        user.Role.String(),
	}, nil
}

type eventEmitter struct {
	publisher integration.EventPublisher
	now       func() time.Time
	logger    zerolog.Logger
}

// emit publishes best effort; a failed publish is logged and dropped.
func (e eventEmitter) emit(ctx context.Context, eventType models.EventType, assignment models.Assignment, students []string) {
	if e.publisher == nil {
		return
	}

	event := &models.AssignmentEvent{
		EventID:      uuid.New().String(),
		Type:         eventType,
		AssignmentID: assignment.ID.Hex(),
		Tutor:        assignment.Tutor,
		Students:     students,
		Timestamp:    e.now().Unix(),
	}

	if err := e.publisher.PublishAssignmentEvent(ctx, event); err != nil {
		e.logger.Warn().
			Err(err).
			Str("event_type", eventType.String()).
			Str("assignment_id", event.AssignmentID).
			Msg("Failed to publish assignment event")
	}
}

func isValidFilter(filter string, valid func(string) bool) bool {
	return filter == "" || filter == models.FilterAll || valid(filter)
}

func matchesFilter(filter, value string) bool {
	return filter == "" || filter == models.FilterAll || filter == value
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// difference returns the elements of a missing from b, in a's order.
func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func intersection(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

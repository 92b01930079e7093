package service

import (
	"context"
	"testing"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateAssignment_CreatesSubmissionsAndProjections(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")

	assignment := env.createAssignment(t, "t1", "s1", "s2")

	assert.Equal(t, "t1", assignment.Tutor)
	assert.Equal(t, models.AssignmentStatusScheduled, assignment.Status)
	assert.Len(t, assignment.ID.Hex(), 24)

	submissions, err := env.repos.Submissions.GetByAssignment(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Len(t, submissions, 2)
	for _, sub := range submissions {
		assert.Equal(t, models.SubmissionStatusPending, sub.Status)
		assert.Equal(t, "t1", sub.TutorUsername)
		assert.Nil(t, sub.SubmittedAt)

		entries := env.entriesFor(t, sub.StudentUsername, assignment.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, sub.ID, entries[0].Submission.ID)
		assert.Equal(t, []string{sub.StudentUsername}, entries[0].Assignment.Students)
	}

	assert.Equal(t, []models.EventType{models.EventAssignmentCreated}, env.events.types())
}

func TestCreateAssignment_DropsUnregisteredStudents(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	env.addUser(t, "t2", models.RoleTutor)

	assignment := env.createAssignment(t, "t1", "s1", "ghost", "t2", "s1")

	assert.Equal(t, []string{"s1"}, assignment.Students)
	assert.Equal(t, []string{"s1"}, env.studentsWithSubmissions(t, assignment.ID))

	stored, err := env.repos.Assignments.GetByID(context.Background(), assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, stored.Students)
}

func TestCreateAssignment_FailsBeforeAnyWrite(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	ctx := context.Background()

	_, err := env.tutors.CreateAssignment(ctx, "t1", &models.AssignmentRequest{
		Description: strPtr("x"),
		Students:    []string{"s1"},
		PublishedAt: timePtr(baseTime),
		Deadline:    timePtr(baseTime),
	})
	assert.ErrorIs(t, err, ErrInvalidDeadline)

	_, err = env.tutors.CreateAssignment(ctx, "t1", &models.AssignmentRequest{
		Description: strPtr("x"),
		Students:    []string{"ghost"},
		PublishedAt: timePtr(baseTime),
		Deadline:    timePtr(baseTime.Add(time.Hour)),
	})
	assert.ErrorIs(t, err, ErrNoStudents)

	assignments, err := env.repos.Assignments.GetByTutor(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.Empty(t, env.user(t, "s1").AssignmentSubmissions)
	assert.Empty(t, env.events.types())
}

func TestCreateAssignment_PartialFailureIsNotRolledBack(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	env.store.FailOn("users.ReplaceMany", errStoreDown)

	_, err := env.tutors.CreateAssignment(context.Background(), "t1", &models.AssignmentRequest{
		Description: strPtr("x"),
		Students:    []string{"s1", "s2"},
		PublishedAt: timePtr(baseTime.Add(time.Hour)),
		Deadline:    timePtr(baseTime.Add(2 * time.Hour)),
	})
	require.ErrorIs(t, err, errStoreDown)

	assignments, err := env.repos.Assignments.GetByTutor(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, []string{"s1", "s2"}, env.studentsWithSubmissions(t, assignments[0].ID))
	assert.Empty(t, env.entriesFor(t, "s1", assignments[0].ID))
}

func TestUpdateAssignment_AddsAndRemovesStudents(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2", "s3")
	ctx := context.Background()
	assignment := env.createAssignment(t, "t1", "s1", "s2")

	updated, err := env.tutors.UpdateAssignment(ctx, assignment.ID, &models.AssignmentRequest{
		Description: strPtr("revised"),
		Students:    []string{"s2", "s3", "ghost"},
	}, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s3"}, updated.Students)

	assert.Nil(t, env.submissionFor(t, assignment.ID, "s1"))
	s3 := env.submissionFor(t, assignment.ID, "s3")
	require.NotNil(t, s3)
	assert.Equal(t, models.SubmissionStatusPending, s3.Status)

	assert.Empty(t, env.entriesFor(t, "s1", assignment.ID))
	for _, s := range []string{"s2", "s3"} {
		entries := env.entriesFor(t, s, assignment.ID)
		require.Len(t, entries, 1, s)
		assert.Equal(t, "revised", entries[0].Assignment.Description)
	}

	stored, err := env.repos.Assignments.GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised", stored.Description)
	assert.Equal(t, []string{"s2", "s3"}, stored.Students)
}

func TestUpdateAssignment_KeepsStudentsWhenPatchOmitsThem(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	assignment := env.createAssignment(t, "t1", "s1", "s2")
	published := baseTime.Add(-time.Hour)

	updated, err := env.tutors.UpdateAssignment(context.Background(), assignment.ID, &models.AssignmentRequest{
		PublishedAt: &published,
	}, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, updated.Students)
	assert.Equal(t, models.AssignmentStatusOngoing, updated.Status)

	for _, s := range []string{"s1", "s2"} {
		entries := env.entriesFor(t, s, assignment.ID)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Assignment.PublishedAt.Equal(published))
		assert.Equal(t, models.AssignmentStatusOngoing, entries[0].Assignment.Status)
	}
}

func TestUpdateAssignment_RejectsBadDates(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	assignment := env.createAssignment(t, "t1", "s1")
	ctx := context.Background()

	tests := []struct {
		name      string
		published *time.Time
		deadline  *time.Time
	}{
		{"both supplied and equal", timePtr(baseTime), timePtr(baseTime)},
		{"both supplied and reversed", timePtr(baseTime.Add(time.Hour)), timePtr(baseTime)},
		{"published after stored deadline", timePtr(assignment.Deadline.Add(time.Hour)), nil},
		{"deadline before stored published date", nil, timePtr(assignment.PublishedAt.Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tutors.UpdateAssignment(ctx, assignment.ID, &models.AssignmentRequest{
				PublishedAt: tt.published,
				Deadline:    tt.deadline,
			}, "t1")
			assert.ErrorIs(t, err, ErrInvalidDates)
		})
	}

	stored, err := env.repos.Assignments.GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	assert.True(t, stored.PublishedAt.Equal(assignment.PublishedAt))
	assert.True(t, stored.Deadline.Equal(assignment.Deadline))
}

func TestUpdateAssignment_NotFoundOrForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	assignment := env.createAssignment(t, "t1", "s1")
	req := &models.AssignmentRequest{Description: strPtr("hijack")}

	_, err := env.tutors.UpdateAssignment(context.Background(), assignment.ID, req, "t2")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)

	_, err = env.tutors.UpdateAssignment(context.Background(), primitive.NewObjectID(), req, "t1")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)
	assert.Equal(t, KindAccess, KindOf(err))
}

func TestDeleteAssignment_RemovesEverything(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	ctx := context.Background()
	assignment := env.createAssignment(t, "t1", "s1", "s2")
	kept := env.createAssignment(t, "t1", "s1")

	assert.ErrorIs(t, env.tutors.DeleteAssignment(ctx, assignment.ID, "t2"), ErrNotFoundOrForbidden)
	require.NoError(t, env.tutors.DeleteAssignment(ctx, assignment.ID, "t1"))

	stored, err := env.repos.Assignments.GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Empty(t, env.studentsWithSubmissions(t, assignment.ID))
	assert.Empty(t, env.entriesFor(t, "s1", assignment.ID))
	assert.Empty(t, env.entriesFor(t, "s2", assignment.ID))

	assert.Len(t, env.entriesFor(t, "s1", kept.ID), 1)
	assert.Equal(t, []string{"s1"}, env.studentsWithSubmissions(t, kept.ID))
}

func TestDeleteAssignment_OrderLeavesNoDanglingSubmissions(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	ctx := context.Background()
	assignment := env.createAssignment(t, "t1", "s1")

	env.store.FailOn("users.ReplaceMany", errStoreDown)
	require.ErrorIs(t, env.tutors.DeleteAssignment(ctx, assignment.ID, "t1"), errStoreDown)

	// submissions are already gone, the projection and the assignment remain
	assert.Empty(t, env.studentsWithSubmissions(t, assignment.ID))
	assert.Len(t, env.entriesFor(t, "s1", assignment.ID), 1)
	stored, err := env.repos.Assignments.GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestGetAssignmentsByFilter(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	ctx := context.Background()

	scheduled := env.createAssignment(t, "t1", "s1")
	ongoing, err := env.tutors.CreateAssignment(ctx, "t1", &models.AssignmentRequest{
		Description: strPtr("y"),
		Students:    []string{"s1"},
		PublishedAt: timePtr(baseTime.Add(-time.Hour)),
		Deadline:    timePtr(baseTime.Add(time.Hour)),
	})
	require.NoError(t, err)
	env.createAssignment(t, "t2", "s1")

	all, err := env.tutors.GetAssignmentsByFilter(ctx, "t1", models.FilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := env.tutors.GetAssignmentsByFilter(ctx, "t1", "")
	require.NoError(t, err)
	assert.Len(t, none, 2)

	got, err := env.tutors.GetAssignmentsByFilter(ctx, "t1", "SCHEDULED")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, scheduled.ID, got[0].ID)

	got, err = env.tutors.GetAssignmentsByFilter(ctx, "t1", "ONGOING")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ongoing.ID, got[0].ID)

	// the scheduled one goes live once the clock passes its publish date
	env.clock.t = baseTime.Add(48 * time.Hour)
	got, err = env.tutors.GetAssignmentsByFilter(ctx, "t1", "ONGOING")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = env.tutors.GetAssignmentsByFilter(ctx, "t1", "OVERDUE")
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = env.tutors.GetAssignmentsByFilter(ctx, "t1", "scheduled")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestGetSubmissionsByAssignment_DerivesOverdueWithoutPersisting(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	ctx := context.Background()
	assignment := env.createAssignment(t, "t1", "s1", "s2")

	env.clock.t = assignment.Deadline.Add(time.Minute)
	submissions, err := env.tutors.GetSubmissionsByAssignment(ctx, assignment.ID, "t1")
	require.NoError(t, err)
	require.Len(t, submissions, 2)
	for _, sub := range submissions {
		assert.Equal(t, models.SubmissionStatusOverdue, sub.Status)
	}

	assert.Equal(t, models.SubmissionStatusPending, env.submissionFor(t, assignment.ID, "s1").Status)

	_, err = env.tutors.GetSubmissionsByAssignment(ctx, assignment.ID, "t2")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)
}

func TestEventsAreBestEffort(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	env.events.err = errStoreDown

	assignment := env.createAssignment(t, "t1", "s1")
	assert.NotNil(t, env.submissionFor(t, assignment.ID, "s1"))
}

func TestAuthenticateTutor(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.tutors.AuthenticateTutor(context.Background(), &models.AuthenticateRequest{Username: "t1", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "token-t1", resp.AccessToken)
	assert.Equal(t, "tutor", resp.Role)
	assert.Len(t, resp.UserID, 24)
}

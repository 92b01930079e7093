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

func projectionEntry(assignment models.Assignment, student string) models.AssignmentSubmission {
	return models.AssignmentSubmission{
		Assignment: assignment.ScopedTo([]string{student}),
		Submission: models.Submission{
			ID:              primitive.NewObjectID(),
			AssignmentID:    assignment.ID,
			StudentUsername: student,
			TutorUsername:   assignment.Tutor,
			Status:          models.SubmissionStatusPending,
		},
	}
}

func testAssignment(students ...string) models.Assignment {
	return models.Assignment{
		ID:          primitive.NewObjectID(),
		Description: "essay",
		Tutor:       "t1",
		Students:    students,
		PublishedAt: baseTime,
		Deadline:    baseTime.Add(time.Hour),
		Status:      models.AssignmentStatusOngoing,
	}
}

func TestCreateProjections_SkipsUnknownAndReplaysSafely(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addStudents(t, "s1", "s2")
	env.addUser(t, "t2", models.RoleTutor)
	assignment := testAssignment("s1", "s2", "ghost", "t2")

	entries := []models.AssignmentSubmission{
		projectionEntry(assignment, "s1"),
		projectionEntry(assignment, "s2"),
		projectionEntry(assignment, "ghost"),
		projectionEntry(assignment, "t2"),
	}

	require.NoError(t, env.users.CreateProjections(ctx, entries))
	require.NoError(t, env.users.CreateProjections(ctx, entries))

	for _, s := range []string{"s1", "s2"} {
		got := env.entriesFor(t, s, assignment.ID)
		require.Len(t, got, 1, s)
		assert.Equal(t, []string{s}, got[0].Assignment.Students)
	}
	assert.Empty(t, env.user(t, "t2").AssignmentSubmissions)
}

func TestSyncBatch_UpdatesAndRemoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addStudents(t, "s1", "s2", "s3")
	assignment := testAssignment("s1", "s2")
	other := testAssignment("s1")

	require.NoError(t, env.users.CreateProjections(ctx, []models.AssignmentSubmission{
		projectionEntry(assignment, "s1"),
		projectionEntry(assignment, "s2"),
		projectionEntry(other, "s1"),
	}))

	assignment.Description = "revised"
	require.NoError(t, env.users.SyncBatch(ctx, assignment, false))
	for _, s := range []string{"s1", "s2"} {
		got := env.entriesFor(t, s, assignment.ID)
		require.Len(t, got, 1)
		assert.Equal(t, "revised", got[0].Assignment.Description)
		assert.Equal(t, []string{s}, got[0].Assignment.Students)
	}

	// s3 has no entry and ghost is not registered: neither is an error.
	require.NoError(t, env.users.SyncBatch(ctx, assignment.ScopedTo([]string{"s1", "s3", "ghost"}), true))
	assert.Empty(t, env.entriesFor(t, "s1", assignment.ID))
	assert.Len(t, env.entriesFor(t, "s1", other.ID), 1)
	assert.Len(t, env.entriesFor(t, "s2", assignment.ID), 1)
	assert.Empty(t, env.user(t, "s3").AssignmentSubmissions)
}

func TestSyncBatch_WriteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	env.store.FailOn("users.ReplaceMany", errStoreDown)

	err := env.users.SyncBatch(context.Background(), testAssignment("s1"), true)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestGetValidUsernames(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2", "s3")
	env.addUser(t, "t1", models.RoleTutor)

	valid, err := env.users.GetValidUsernames(context.Background(), []string{"s3", "ghost", "s1", "t1", "s3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s1"}, valid)

	valid, err = env.users.GetValidUsernames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, valid)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.users.Authenticate(ctx, "alice", "secret", models.RoleStudent)
	require.NoError(t, err)
	assert.False(t, registered.ID.IsZero())
	assert.Equal(t, models.RoleStudent, registered.Role)
	assert.NotEqual(t, []byte("secret"), registered.PasswordHash)

	again, err := env.users.Authenticate(ctx, "alice", "secret", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, again.ID)

	_, err = env.users.Authenticate(ctx, "alice", "wrong", models.RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Authenticate(ctx, "alice", "secret", models.RoleTutor)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, KindAuth, KindOf(err))
}

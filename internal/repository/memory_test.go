package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemorySubmissions_InsertManySkipsExistingPairs(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryStore(zerolog.Nop()).Repositories()
	assignmentID := primitive.NewObjectID()

	first := models.Submission{ID: primitive.NewObjectID(), AssignmentID: assignmentID, StudentUsername: "s1", Status: models.SubmissionStatusPending}
	require.NoError(t, repos.Submissions.InsertMany(ctx, []models.Submission{first}))

	replay := []models.Submission{
		{AssignmentID: assignmentID, StudentUsername: "s1", Status: models.SubmissionStatusPending},
		{AssignmentID: assignmentID, StudentUsername: "s2", Status: models.SubmissionStatusPending},
	}
	require.NoError(t, repos.Submissions.InsertMany(ctx, replay))

	stored, err := repos.Submissions.GetByAssignment(ctx, assignmentID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, first.ID, stored[0].ID)
	assert.Equal(t, "s2", stored[1].StudentUsername)

	deleted, err := repos.Submissions.DeleteByAssignmentAndStudents(ctx, assignmentID, []string{"s2", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestMemoryUsers_UniqueUsernameAndProjectionLookup(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryStore(zerolog.Nop()).Repositories()
	assignmentID := primitive.NewObjectID()

	alice := &models.User{Username: "alice", Role: models.RoleStudent}
	require.NoError(t, repos.Users.Create(ctx, alice))
	assert.False(t, alice.ID.IsZero())
	assert.ErrorIs(t, repos.Users.Create(ctx, &models.User{Username: "alice", Role: models.RoleTutor}), ErrDuplicateKey)

	holders, err := repos.Users.GetByProjectedAssignment(ctx, assignmentID)
	require.NoError(t, err)
	assert.Empty(t, holders)

	alice.AssignmentSubmissions = []models.AssignmentSubmission{{
		Assignment: models.Assignment{ID: assignmentID},
		Submission: models.Submission{AssignmentID: assignmentID, StudentUsername: "alice"},
	}}
	require.NoError(t, repos.Users.ReplaceMany(ctx, []models.User{*alice}))

	holders, err = repos.Users.GetByProjectedAssignment(ctx, assignmentID)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, "alice", holders[0].Username)

	// Returned users are copies.
	holders[0].AssignmentSubmissions = nil
	reloaded, err := repos.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, reloaded.AssignmentSubmissions, 1)
}

func TestMemoryStore_FailOn(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(zerolog.Nop())
	repos := store.Repositories()
	boom := errors.New("boom")

	store.FailOn("assignments.Create", boom)
	assert.ErrorIs(t, repos.Assignments.Create(ctx, &models.Assignment{Tutor: "t1"}), boom)

	store.FailOn("assignments.Create", nil)
	assignment := &models.Assignment{ID: primitive.NewObjectID(), Tutor: "t1"}
	require.NoError(t, repos.Assignments.Create(ctx, assignment))

	got, err := repos.Assignments.GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t1", got.Tutor)

	missing, err := repos.Assignments.GetByID(ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

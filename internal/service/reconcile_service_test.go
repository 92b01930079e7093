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

func TestReconcileAssignment_CleanAssignmentIsUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	assignment := env.createAssignment(t, "t1", "s1", "s2")

	report, err := env.reconciler.ReconcileAssignment(context.Background(), assignment.ID)
	require.NoError(t, err)
	assert.True(t, report.AssignmentExists)
	assert.Zero(t, report.SubmissionsCreated)
	assert.Zero(t, report.SubmissionsRemoved)
	assert.Zero(t, report.ProjectionsRepaired)
	assert.Zero(t, report.ProjectionsRemoved)
	assert.True(t, report.ReconciledAt.Equal(baseTime))
}

func TestReconcileAssignment_IgnoresStatusChangeOverTime(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	ctx := context.Background()
	first := env.createAssignment(t, "t1", "s1", "s2")
	second := env.createAssignment(t, "t1", "s1")

	env.clock.t = baseTime.Add(48 * time.Hour)

	report, err := env.reconciler.ReconcileAssignment(ctx, first.ID)
	require.NoError(t, err)
	assert.Zero(t, report.ProjectionsRepaired)
	assert.Zero(t, report.ProjectionsRemoved)

	entries := env.user(t, "s1").AssignmentSubmissions
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].Assignment.ID)
	assert.Equal(t, second.ID, entries[1].Assignment.ID)
}

func TestReconcileAssignment_RepairsStaleEntryInPlace(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	ctx := context.Background()
	first := env.createAssignment(t, "t1", "s1")
	second := env.createAssignment(t, "t1", "s1")

	s1 := env.user(t, "s1")
	s1.AssignmentSubmissions[0].Assignment.Description = "stale"
	require.NoError(t, env.repos.Users.Replace(ctx, s1))

	report, err := env.reconciler.ReconcileAssignment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProjectionsRepaired)

	entries := env.user(t, "s1").AssignmentSubmissions
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].Assignment.ID)
	assert.Equal(t, "x", entries[0].Assignment.Description)
	assert.Equal(t, second.ID, entries[1].Assignment.ID)
}

func TestReconcileAssignment_RepairsInterruptedCreate(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	ctx := context.Background()

	env.store.FailOn("submissions.InsertMany", errStoreDown)
	_, err := env.tutors.CreateAssignment(ctx, "t1", &models.AssignmentRequest{
		Description: strPtr("x"),
		Students:    []string{"s1", "s2"},
		PublishedAt: timePtr(baseTime.Add(time.Hour)),
		Deadline:    timePtr(baseTime.Add(2 * time.Hour)),
	})
	require.ErrorIs(t, err, errStoreDown)
	env.store.FailOn("submissions.InsertMany", nil)

	assignments, err := env.repos.Assignments.GetByTutor(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	id := assignments[0].ID
	require.Empty(t, env.studentsWithSubmissions(t, id))

	report, err := env.reconciler.ReconcileAssignment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SubmissionsCreated)
	assert.Equal(t, 2, report.ProjectionsRepaired)

	assert.Equal(t, []string{"s1", "s2"}, env.studentsWithSubmissions(t, id))
	for _, s := range []string{"s1", "s2"} {
		entries := env.entriesFor(t, s, id)
		require.Len(t, entries, 1)
		assert.Equal(t, env.submissionFor(t, id, s).ID, entries[0].Submission.ID)
	}

	again, err := env.reconciler.ReconcileAssignment(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, again.SubmissionsCreated)
	assert.Zero(t, again.ProjectionsRepaired)
}

func TestReconcileAssignment_CleansUpDeletedAssignment(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	ctx := context.Background()
	assignment := env.createAssignment(t, "t1", "s1", "s2")

	require.NoError(t, env.repos.Assignments.Delete(ctx, assignment.ID))

	report, err := env.reconciler.ReconcileAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	assert.False(t, report.AssignmentExists)
	assert.Equal(t, 2, report.SubmissionsRemoved)
	assert.Equal(t, 2, report.ProjectionsRemoved)

	assert.Empty(t, env.studentsWithSubmissions(t, assignment.ID))
	assert.Empty(t, env.entriesFor(t, "s1", assignment.ID))
	assert.Empty(t, env.entriesFor(t, "s2", assignment.ID))
}

func TestReconcileAssignment_CollapsesDuplicatesAndDropsStrays(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1", "s2")
	ctx := context.Background()
	assignment := env.createAssignment(t, "t1", "s1")

	s1 := env.user(t, "s1")
	s1.AssignmentSubmissions = append(s1.AssignmentSubmissions, s1.AssignmentSubmissions[0])
	s1.AssignmentSubmissions[0].Assignment.Description = "stale"
	require.NoError(t, env.repos.Users.Replace(ctx, s1))

	s2 := env.user(t, "s2")
	s2.AssignmentSubmissions = []models.AssignmentSubmission{projectionEntry(*assignment, "s2")}
	require.NoError(t, env.repos.Users.Replace(ctx, s2))

	report, err := env.reconciler.ReconcileAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProjectionsRepaired)
	assert.Equal(t, 1, report.ProjectionsRemoved)

	entries := env.entriesFor(t, "s1", assignment.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Assignment.Description)
	assert.Empty(t, env.entriesFor(t, "s2", assignment.ID))
}

func TestReconcileOwned(t *testing.T) {
	env := newTestEnv(t)
	env.addStudents(t, "s1")
	assignment := env.createAssignment(t, "t1", "s1")

	_, err := env.reconciler.ReconcileOwned(context.Background(), assignment.ID, "t2")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)

	_, err = env.reconciler.ReconcileOwned(context.Background(), primitive.NewObjectID(), "t1")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)

	report, err := env.reconciler.ReconcileOwned(context.Background(), assignment.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, assignment.ID.Hex(), report.AssignmentID)
}

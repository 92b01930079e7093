package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

type fakeTokens struct{}

func (fakeTokens) Generate(user *models.User) (string, error) {
	return "token-" + user.Username, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AssignmentEvent
	err    error
}

func (p *recordingPublisher) PublishAssignmentEvent(ctx context.Context, event *models.AssignmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []models.EventType
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type testEnv struct {
	store       *repository.MemoryStore
	repos       repository.Repositories
	clock       *fakeClock
	events      *recordingPublisher
	assignments AssignmentService
	submissions SubmissionService
	users       UserService
	tutors      TutorService
	students    StudentService
	reconciler  ReconcileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	store := repository.NewMemoryStore(logger)
	repos := store.Repositories()
	clock := &fakeClock{t: baseTime}
	events := &recordingPublisher{}

	assignments := NewAssignmentService(repos.Assignments, clock.Now, logger)
	submissions := NewSubmissionService(repos.Submissions, clock.Now, logger)
	users := NewUserService(repos.Users, logger)

	return &testEnv{
		store:       store,
		repos:       repos,
		clock:       clock,
		events:      events,
		assignments: assignments,
		submissions: submissions,
		users:       users,
		tutors:      NewTutorService(assignments, submissions, users, fakeTokens{}, events, clock.Now, logger),
		students:    NewStudentService(assignments, submissions, users, fakeTokens{}, events, clock.Now, logger),
		reconciler:  NewReconcileService(assignments, submissions, users, repos.Users, clock.Now, logger),
	}
}

func (e *testEnv) addUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Username: username, Role: role}
	require.NoError(t, user.SetPassword("password"))
	require.NoError(t, e.repos.Users.Create(context.Background(), user))
	return user
}

func (e *testEnv) addStudents(t *testing.T, usernames ...string) {
	t.Helper()
	for _, username := range usernames {
		e.addUser(t, username, models.RoleStudent)
	}
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.repos.Users.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func (e *testEnv) entriesFor(t *testing.T, username string, assignmentID primitive.ObjectID) []models.AssignmentSubmission {
	t.Helper()
	var entries []models.AssignmentSubmission
	for _, entry := range e.user(t, username).AssignmentSubmissions {
		if entry.Assignment.ID == assignmentID {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (e *testEnv) submissionFor(t *testing.T, assignmentID primitive.ObjectID, student string) *models.Submission {
	t.Helper()
	submission, err := e.repos.Submissions.GetByAssignmentAndStudent(context.Background(), assignmentID, student)
	require.NoError(t, err)
	return submission
}

func (e *testEnv) studentsWithSubmissions(t *testing.T, assignmentID primitive.ObjectID) []string {
	t.Helper()
	submissions, err := e.repos.Submissions.GetByAssignment(context.Background(), assignmentID)
	require.NoError(t, err)
	var students []string
	for _, s := range submissions {
		students = append(students, s.StudentUsername)
	}
	return students
}

// createAssignment publishes tomorrow with a deadline a week out.
func (e *testEnv) createAssignment(t *testing.T, tutor string, students ...string) *models.Assignment {
	t.Helper()
	assignment, err := e.tutors.CreateAssignment(context.Background(), tutor, &models.AssignmentRequest{
		Description: strPtr("x"),
		Students:    students,
		PublishedAt: timePtr(baseTime.Add(24 * time.Hour)),
		Deadline:    timePtr(baseTime.Add(7 * 24 * time.Hour)),
	})
	require.NoError(t, err)
	return assignment
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

var errStoreDown = errors.New("store unavailable")

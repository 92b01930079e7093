package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrDuplicateKey = errors.New("duplicate key")

// MemoryStore keeps the three collections in maps. Documents are copied on the
// way in and out so callers never share slices with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	assignments map[primitive.ObjectID]models.Assignment
	submissions map[primitive.ObjectID]models.Submission
	users       map[primitive.ObjectID]models.User
	failures    map[string]error
	logger      zerolog.Logger
}

func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		assignments: make(map[primitive.ObjectID]models.Assignment),
		submissions: make(map[primitive.ObjectID]models.Submission),
		users:       make(map[primitive.ObjectID]models.User),
		failures:    make(map[string]error),
		logger:      logger,
	}
}

func (s *MemoryStore) Repositories() Repositories {
	return Repositories{
		Assignments: &memoryAssignmentRepository{s},
		Submissions: &memorySubmissionRepository{s},
		Users:       &memoryUserRepository{s},
	}
}

// FailOn makes the named operation (e.g. "submissions.InsertMany") return err
// until cleared with a nil err.
func (s *MemoryStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemoryStore) failure(op string) error {
	return s.failures[op]
}

func cloneAssignment(a models.Assignment) models.Assignment {
	a.Students = append([]string(nil), a.Students...)
	return a
}

func cloneSubmission(sub models.Submission) models.Submission {
	if sub.SubmittedAt != nil {
		t := *sub.SubmittedAt
		sub.SubmittedAt = &t
	}
	return sub
}

func cloneUser(u models.User) models.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	if u.AssignmentSubmissions != nil {
		list := make([]models.AssignmentSubmission, len(u.AssignmentSubmissions))
		for i, as := range u.AssignmentSubmissions {
			list[i] = models.AssignmentSubmission{
				Assignment: cloneAssignment(as.Assignment),
				Submission: cloneSubmission(as.Submission),
			}
		}
		u.AssignmentSubmissions = list
	}
	return u
}

type memoryAssignmentRepository struct {
	store *MemoryStore
}

func (r *memoryAssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("assignments.Create"); err != nil {
		return err
	}

	if assignment.ID.IsZero() {
		assignment.ID = primitive.NewObjectID()
	}
	if _, ok := r.store.assignments[assignment.ID]; ok {
		return ErrDuplicateKey
	}
	r.store.assignments[assignment.ID] = cloneAssignment(*assignment)
	return nil
}

func (r *memoryAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.assignments[id]
	if !ok {
		return nil, nil
	}
	a = cloneAssignment(a)
	return &a, nil
}

func (r *memoryAssignmentRepository) GetByTutor(ctx context.Context, tutor string) ([]models.Assignment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var assignments []models.Assignment
	for _, a := range r.store.assignments {
		if a.Tutor == tutor {
			assignments = append(assignments, cloneAssignment(a))
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].ID.Hex() < assignments[j].ID.Hex()
	})
	return assignments, nil
}

func (r *memoryAssignmentRepository) Replace(ctx context.Context, assignment *models.Assignment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("assignments.Replace"); err != nil {
		return err
	}

	if _, ok := r.store.assignments[assignment.ID]; ok {
		r.store.assignments[assignment.ID] = cloneAssignment(*assignment)
	}
	return nil
}

func (r *memoryAssignmentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("assignments.Delete"); err != nil {
		return err
	}

	delete(r.store.assignments, id)
	return nil
}

type memorySubmissionRepository struct {
	store *MemoryStore
}

func (r *memorySubmissionRepository) find(assignmentID primitive.ObjectID, student string) (models.Submission, bool) {
	for _, sub := range r.store.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentUsername == student {
			return sub, true
		}
	}
	return models.Submission{}, false
}

func (r *memorySubmissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.Submission, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	sub, ok := r.find(assignmentID, student)
	if !ok {
		return nil, nil
	}
	sub = cloneSubmission(sub)
	return &sub, nil
}

func (r *memorySubmissionRepository) GetByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var submissions []models.Submission
	for _, sub := range r.store.submissions {
		if sub.AssignmentID == assignmentID {
			submissions = append(submissions, cloneSubmission(sub))
		}
	}
	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].StudentUsername < submissions[j].StudentUsername
	})
	return submissions, nil
}

func (r *memorySubmissionRepository) InsertMany(ctx context.Context, submissions []models.Submission) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("submissions.InsertMany"); err != nil {
		return err
	}

	for _, sub := range submissions {
		if _, exists := r.find(sub.AssignmentID, sub.StudentUsername); exists {
			continue
		}
		if sub.ID.IsZero() {
			sub.ID = primitive.NewObjectID()
		}
		r.store.submissions[sub.ID] = cloneSubmission(sub)
	}
	return nil
}

func (r *memorySubmissionRepository) Replace(ctx context.Context, submission *models.Submission) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("submissions.Replace"); err != nil {
		return err
	}

	if _, ok := r.store.submissions[submission.ID]; ok {
		r.store.submissions[submission.ID] = cloneSubmission(*submission)
	}
	return nil
}

func (r *memorySubmissionRepository) DeleteByAssignmentAndStudents(ctx context.Context, assignmentID primitive.ObjectID, students []string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("submissions.DeleteByAssignmentAndStudents"); err != nil {
		return 0, err
	}

	set := make(map[string]struct{}, len(students))
	for _, s := range students {
		set[s] = struct{}{}
	}

	deleted := 0
	for id, sub := range r.store.submissions {
		if sub.AssignmentID != assignmentID {
			continue
		}
		if _, ok := set[sub.StudentUsername]; ok {
			delete(r.store.submissions, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryUserRepository struct {
	store *MemoryStore
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("users.Create"); err != nil {
		return err
	}

	for _, u := range r.store.users {
		if u.Username == user.Username {
			return ErrDuplicateKey
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.store.users[user.ID] = cloneUser(*user)
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	u = cloneUser(u)
	return &u, nil
}

func (r *memoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, u := range r.store.users {
		if u.Username == username {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepository) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	set := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		set[name] = struct{}{}
	}

	var users []models.User
	for _, u := range r.store.users {
		if _, ok := set[u.Username]; ok {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (r *memoryUserRepository) GetByProjectedAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var users []models.User
	for _, u := range r.store.users {
		if u.ProjectionIndex(assignmentID) != -1 {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (r *memoryUserRepository) Replace(ctx context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("users.Replace"); err != nil {
		return err
	}

	if _, ok := r.store.users[user.ID]; ok {
		r.store.users[user.ID] = cloneUser(*user)
	}
	return nil
}

func (r *memoryUserRepository) ReplaceMany(ctx context.Context, users []models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("users.ReplaceMany"); err != nil {
		return err
	}

	for _, u := range users {
		if _, ok := r.store.users[u.ID]; ok {
			r.store.users[u.ID] = cloneUser(u)
		}
	}
	return nil
}

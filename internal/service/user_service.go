package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/repository"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	// CreateProjections adds one entry per element to the owning student's
	// list. Unknown usernames are skipped. An entry already present for the
	// same assignment is overwritten so replays do not duplicate it.
	CreateProjections(ctx context.Context, entries []models.AssignmentSubmission) error
	// SyncBatch refreshes (or removes) the entry for assignment in the list of
	// every student named in assignment.Students.
	SyncBatch(ctx context.Context, assignment models.Assignment, remove bool) error
	GetValidUsernames(ctx context.Context, usernames []string) ([]string, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Replace(ctx context.Context, user *models.User) error
	// Authenticate registers unknown usernames with the requested role.
	Authenticate(ctx context.Context, username, password string, role models.Role) (*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
	}
}

func (s *userService) CreateProjections(ctx context.Context, entries []models.AssignmentSubmission) error {
	loaded := make(map[string]*models.User)
	var order []string

	for _, entry := range entries {
		username := entry.Submission.StudentUsername

		user, ok := loaded[username]
		if !ok {
			found, err := s.userRepo.GetByUsername(ctx, username)
			if err != nil {
				return fmt.Errorf("failed to get student %s: %w", username, err)
			}
			if found == nil || found.Role != models.RoleStudent {
				s.logger.Debug().Str("username", username).Msg("Skipping projection for unknown student")
				continue
			}
			user = found
			loaded[username] = user
			order = append(order, username)
		}

		if idx := user.ProjectionIndex(entry.Assignment.ID); idx != -1 {
			user.AssignmentSubmissions[idx] = entry
			continue
		}
		if user.AssignmentSubmissions == nil {
			user.AssignmentSubmissions = []models.AssignmentSubmission{}
		}
		user.AssignmentSubmissions = append(user.AssignmentSubmissions, entry)
	}

	return s.replaceLoaded(ctx, loaded, order)
}

func (s *userService) SyncBatch(ctx context.Context, assignment models.Assignment, remove bool) error {
	loaded := make(map[string]*models.User)
	var order []string

	for _, username := range assignment.Students {
		if _, seen := loaded[username]; seen {
			continue
		}

		user, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("failed to get student %s: %w", username, err)
		}
		if user == nil {
			continue
		}

		if idx := user.ProjectionIndex(assignment.ID); idx != -1 {
			if remove {
				user.AssignmentSubmissions = append(user.AssignmentSubmissions[:idx], user.AssignmentSubmissions[idx+1:]...)
			} else {
				user.AssignmentSubmissions[idx].Assignment = assignment.ScopedTo([]string{username})
			}
		}

		loaded[username] = user
		order = append(order, username)
	}

	if err := s.replaceLoaded(ctx, loaded, order); err != nil {
		return err
	}

	s.logger.Debug().
		Str("assignment_id", assignment.ID.Hex()).
		Bool("remove", remove).
		Int("students", len(order)).
		Msg("Projections synchronized")

	return nil
}

func (s *userService) replaceLoaded(ctx context.Context, loaded map[string]*models.User, order []string) error {
	if len(order) == 0 {
		return nil
	}

	users := make([]models.User, 0, len(order))
	for _, username := range order {
		users = append(users, *loaded[username])
	}

	if err := s.userRepo.ReplaceMany(ctx, users); err != nil {
		return fmt.Errorf("failed to replace students: %w", err)
	}
	return nil
}

// GetValidUsernames keeps the input order and drops duplicates, unknown
// usernames and users that are not students.
func (s *userService) GetValidUsernames(ctx context.Context, usernames []string) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	users, err := s.userRepo.GetByUsernames(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	students := make(map[string]struct{}, len(users))
	for _, user := range users {
		if user.Role == models.RoleStudent {
			students[user.Username] = struct{}{}
		}
	}

	valid := make([]string, 0, len(students))
	for _, username := range usernames {
		if _, ok := students[username]; ok {
			valid = append(valid, username)
			delete(students, username)
		}
	}
	return valid, nil
}

func (s *userService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) Replace(ctx context.Context, user *models.User) error {
	if err := s.userRepo.Replace(ctx, user); err != nil {
		return fmt.Errorf("failed to replace user: %w", err)
	}
	return nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user, err = s.register(ctx, username, password, role)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		// registered concurrently; verify against the stored user
		if user, err = s.GetByUsername(ctx, username); err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrInvalidCredentials
		}
	}

	if user.Role != role || user.CheckPassword(password) != nil {
		s.logger.Warn().Str("username", username).Str("role", role.String()).Msg("Authentication failed")
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *userService) register(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	user := &models.User{
		ID:       primitive.NewObjectID(),
		Username: username,
		Role:     role,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID.Hex()).
		Str("username", username).
		Str("role", role.String()).
		Msg("User registered")

	return user, nil
}

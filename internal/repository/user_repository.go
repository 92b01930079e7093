package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userRepository struct {
	*PostgresRepository
}

func NewPostgresUserRepository(db *sql.DB, logger zerolog.Logger) UserRepository {
	return &userRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const selectUser = `SELECT password_hash, doc FROM users`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		hash []byte
		doc  []byte
	)
	if err := row.Scan(&hash, &doc); err != nil {
		return nil, err
	}

	user := &models.User{}
	if err := decodeDocument(doc, user); err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	return user, nil
}

func (r *userRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	doc, err := encodeDocument(user)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, username, role, password_hash, doc)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		user.ID.Hex(),
		user.Username,
		string(user.Role),
		user.PasswordHash,
		doc,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id.Hex()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE username = $1`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (r *userRepository) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	return r.queryUsers(ctx, selectUser+` WHERE username = ANY($1) ORDER BY username`, pq.Array(usernames))
}

func (r *userRepository) GetByProjectedAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.User, error) {
	probe, err := json.Marshal([]map[string]map[string]string{
		{"assignment": {"id": assignmentID.Hex()}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build projection probe: %w", err)
	}

	query := selectUser + `
		WHERE doc->'assignmentSubmissions' @> $1::jsonb
		ORDER BY username
	`
	return r.queryUsers(ctx, query, string(probe))
}

func (r *userRepository) Replace(ctx context.Context, user *models.User) error {
	doc, err := encodeDocument(user)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET username = $1, role = $2, password_hash = $3, doc = $4
		WHERE id = $5
	`

	_, err = r.db.ExecContext(ctx, query,
		user.Username,
		string(user.Role),
		user.PasswordHash,
		doc,
		user.ID.Hex(),
	)
	return err
}

func (r *userRepository) ReplaceMany(ctx context.Context, users []models.User) error {
	for i := range users {
		if err := r.Replace(ctx, &users[i]); err != nil {
			return fmt.Errorf("failed to replace user %s: %w", users[i].Username, err)
		}
	}
	return nil
}

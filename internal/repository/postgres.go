package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// uniqueViolation is the SQLSTATE postgres returns for a unique index conflict.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPostgresRepository(db *sql.DB, logger zerolog.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// NewPostgresRepositories stores each entity as a JSONB document next to the
// columns its finders filter on.
func NewPostgresRepositories(db *sql.DB, logger zerolog.Logger) Repositories {
	return Repositories{
		Assignments: NewPostgresAssignmentRepository(db, logger),
		Submissions: NewPostgresSubmissionRepository(db, logger),
		Users:       NewPostgresUserRepository(db, logger),
	}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func encodeDocument(v interface{}) ([]byte, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

func decodeDocument(doc []byte, v interface{}) error {
	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type assignmentRepository struct {
	*PostgresRepository
}

func NewPostgresAssignmentRepository(db *sql.DB, logger zerolog.Logger) AssignmentRepository {
	return &assignmentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID.IsZero() {
		assignment.ID = primitive.NewObjectID()
	}

	doc, err := encodeDocument(assignment)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO assignments (id, tutor, doc)
		VALUES ($1, $2, $3)
	`

	_, err = r.db.ExecContext(ctx, query, assignment.ID.Hex(), assignment.Tutor, doc)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *assignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	query := `SELECT doc FROM assignments WHERE id = $1`

	var doc []byte
	err := r.db.QueryRowContext(ctx, query, id.Hex()).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{}
	if err := decodeDocument(doc, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *assignmentRepository) GetByTutor(ctx context.Context, tutor string) ([]models.Assignment, error) {
	query := `SELECT doc FROM assignments WHERE tutor = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, tutor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}

		var assignment models.Assignment
		if err := decodeDocument(doc, &assignment); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}

	return assignments, rows.Err()
}

func (r *assignmentRepository) Replace(ctx context.Context, assignment *models.Assignment) error {
	doc, err := encodeDocument(assignment)
	if err != nil {
		return err
	}

	query := `
		UPDATE assignments
		SET tutor = $1, doc = $2
		WHERE id = $3
	`

	_, err = r.db.ExecContext(ctx, query, assignment.Tutor, doc, assignment.ID.Hex())
	return err
}

func (r *assignmentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	query := `DELETE FROM assignments WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id.Hex())
	return err
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type submissionRepository struct {
	*PostgresRepository
}

func NewPostgresSubmissionRepository(db *sql.DB, logger zerolog.Logger) SubmissionRepository {
	return &submissionRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.Submission, error) {
	query := `
		SELECT doc FROM submissions
		WHERE assignment_id = $1 AND student_username = $2
	`

	var doc []byte
	err := r.db.QueryRowContext(ctx, query, assignmentID.Hex(), student).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	submission := &models.Submission{}
	if err := decodeDocument(doc, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error) {
	query := `
		SELECT doc FROM submissions
		WHERE assignment_id = $1
		ORDER BY student_username
	`

	rows, err := r.db.QueryContext(ctx, query, assignmentID.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}

		var submission models.Submission
		if err := decodeDocument(doc, &submission); err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}

	return submissions, rows.Err()
}

func (r *submissionRepository) InsertMany(ctx context.Context, submissions []models.Submission) error {
	if len(submissions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO submissions (id, assignment_id, student_username, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (assignment_id, student_username) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range submissions {
		submission := submissions[i]
		if submission.ID.IsZero() {
			submission.ID = primitive.NewObjectID()
		}

		doc, err := encodeDocument(submission)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx,
			submission.ID.Hex(),
			submission.AssignmentID.Hex(),
			submission.StudentUsername,
			doc,
		); err != nil {
			return fmt.Errorf("failed to insert submission for %s: %w", submission.StudentUsername, err)
		}
	}

	return tx.Commit()
}

func (r *submissionRepository) Replace(ctx context.Context, submission *models.Submission) error {
	doc, err := encodeDocument(submission)
	if err != nil {
		return err
	}

	query := `UPDATE submissions SET doc = $1 WHERE id = $2`
	_, err = r.db.ExecContext(ctx, query, doc, submission.ID.Hex())
	return err
}

func (r *submissionRepository) DeleteByAssignmentAndStudents(ctx context.Context, assignmentID primitive.ObjectID, students []string) (int, error) {
	if len(students) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM submissions
		WHERE assignment_id = $1 AND student_username = ANY($2)
	`

	result, err := r.db.ExecContext(ctx, query, assignmentID.Hex(), pq.Array(students))
	if err != nil {
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

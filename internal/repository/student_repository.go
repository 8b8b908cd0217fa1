package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/meal-gate-api/internal/models"
)

// StudentRepository manages the local roster projection.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by business id. Returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, name, department, photo_url, synced_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListIDs returns every local student id.
func (r *StudentRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM students ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	return ids, nil
}

// Upsert inserts the student or refreshes its roster fields.
func (r *StudentRepository) Upsert(ctx context.Context, student *models.Student) error {
	student.SyncedAt = time.Now().UTC()
	const query = `INSERT INTO students (id, name, department, photo_url, synced_at)
VALUES (:id, :name, :department, :photo_url, :synced_at)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, department = EXCLUDED.department,
              photo_url = EXCLUDED.photo_url, synced_at = EXCLUDED.synced_at`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("upsert student %s: %w", student.ID, err)
	}
	return nil
}

// DeleteByIDs hard-deletes the given students.
func (r *StudentRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete students: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete students: %w", err)
	}
	return n, nil
}

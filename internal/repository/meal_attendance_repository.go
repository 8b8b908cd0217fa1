package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/meal-gate-api/internal/models"
)

// MealAttendanceRepository owns the admission ledger.
type MealAttendanceRepository struct {
	db *sqlx.DB
}

// NewMealAttendanceRepository constructs the repository.
func NewMealAttendanceRepository(db *sqlx.DB) *MealAttendanceRepository {
	return &MealAttendanceRepository{db: db}
}

// InsertIfAbsent records an admission in a single statement. It returns false without error when a
// record for (student, meal, day) already exists.
func (r *MealAttendanceRepository) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO meal_attendance (id, student_id, meal_type, day, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (student_id, meal_type, day) DO NOTHING
RETURNING id`
	var id string
	err := r.db.GetContext(ctx, &id, query, record.ID, record.StudentID, record.MealType, record.Day, record.CreatedAt)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows), IsUniqueViolation(err):
		return false, nil
	default:
		return false, fmt.Errorf("insert meal attendance: %w", err)
	}
}

// DeleteByMeal removes every admission for the meal type regardless of day.
func (r *MealAttendanceRepository) DeleteByMeal(ctx context.Context, mealType models.MealType) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meal_attendance WHERE meal_type = $1`, mealType)
	if err != nil {
		return 0, fmt.Errorf("delete meal attendance %s: %w", mealType, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete meal attendance %s: %w", mealType, err)
	}
	return n, nil
}

// DeleteAll wipes the ledger.
func (r *MealAttendanceRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meal_attendance`)
	if err != nil {
		return 0, fmt.Errorf("delete all meal attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all meal attendance: %w", err)
	}
	return n, nil
}

// CountByMealAndDay counts admissions for one meal on one day.
func (r *MealAttendanceRepository) CountByMealAndDay(ctx context.Context, mealType models.MealType, day models.Day) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM meal_attendance WHERE meal_type = $1 AND day = $2`
	if err := r.db.GetContext(ctx, &total, query, mealType, day); err != nil {
		return 0, fmt.Errorf("count meal attendance: %w", err)
	}
	return total, nil
}

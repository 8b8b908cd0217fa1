package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/meal-gate-api/internal/models"
)

// MealWindowRepository persists the per-meal admission windows.
type MealWindowRepository struct {
	db *sqlx.DB
}

// NewMealWindowRepository constructs the repository.
func NewMealWindowRepository(db *sqlx.DB) *MealWindowRepository {
	return &MealWindowRepository{db: db}
}

const mealWindowColumns = `meal_type, start_time, end_time, enabled, before_window_minutes, after_window_minutes, updated_at`

// List returns every stored window ordered by meal type.
func (r *MealWindowRepository) List(ctx context.Context) ([]models.MealWindow, error) {
	query := `SELECT ` + mealWindowColumns + ` FROM meal_windows ORDER BY meal_type ASC`
	var windows []models.MealWindow
	if err := r.db.SelectContext(ctx, &windows, query); err != nil {
		return nil, fmt.Errorf("list meal windows: %w", err)
	}
	return windows, nil
}

// Get fetches a single window. Returns sql.ErrNoRows when absent.
func (r *MealWindowRepository) Get(ctx context.Context, mealType models.MealType) (*models.MealWindow, error) {
	query := `SELECT ` + mealWindowColumns + ` FROM meal_windows WHERE meal_type = $1`
	var window models.MealWindow
	if err := r.db.GetContext(ctx, &window, query, mealType); err != nil {
		return nil, err
	}
	return &window, nil
}

// InsertMissing inserts the provided windows, leaving existing rows untouched.
func (r *MealWindowRepository) InsertMissing(ctx context.Context, windows []models.MealWindow) (int64, error) {
	if len(windows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin meal window bootstrap tx: %w", err)
	}
	const query = `INSERT INTO meal_windows (meal_type, start_time, end_time, enabled, before_window_minutes, after_window_minutes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (meal_type) DO NOTHING`
	now := time.Now().UTC()
	var inserted int64
	for _, w := range windows {
		res, err := tx.ExecContext(ctx, query, w.MealType, w.StartTime, w.EndTime, w.Enabled, w.BeforeWindowMinutes, w.AfterWindowMinutes, now)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert default meal window %s: %w", w.MealType, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit meal window bootstrap tx: %w", err)
	}
	return inserted, nil
}

// ReplaceAll writes the full configuration in one transaction. Buffer columns keep their stored values.
func (r *MealWindowRepository) ReplaceAll(ctx context.Context, windows []models.MealWindow) error {
	if len(windows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin meal window tx: %w", err)
	}
	const query = `INSERT INTO meal_windows (meal_type, start_time, end_time, enabled, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (meal_type)
DO UPDATE SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
              enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range windows {
		windows[i].UpdatedAt = now
		w := windows[i]
		if _, err := tx.ExecContext(ctx, query, w.MealType, w.StartTime, w.EndTime, w.Enabled, w.UpdatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert meal window %s: %w", w.MealType, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit meal window tx: %w", err)
	}
	return nil
}

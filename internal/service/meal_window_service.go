package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/models"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
)

type mealWindowRepository interface {
	List(ctx context.Context) ([]models.MealWindow, error)
	Get(ctx context.Context, mealType models.MealType) (*models.MealWindow, error)
	InsertMissing(ctx context.Context, windows []models.MealWindow) (int64, error)
	ReplaceAll(ctx context.Context, windows []models.MealWindow) error
}

// MealWindowListener is notified after the configuration has been persisted.
type MealWindowListener func(ctx context.Context, windows []models.MealWindow)

// MealWindowServiceConfig tunes the registry.
type MealWindowServiceConfig struct {
	// Location is the timezone wall-clock windows are expressed in.
	Location *time.Location
}

// MealWindowService is the registry of per-meal admission windows.
type MealWindowService struct {
	repo      mealWindowRepository
	cache     MealWindowCache
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	location  *time.Location

	// updateMu orders persist-then-notify so listeners see updates in commit order.
	updateMu  sync.Mutex
	mu        sync.RWMutex
	listeners []MealWindowListener
}

// NewMealWindowService constructs the registry. A nil cache disables caching.
func NewMealWindowService(repo mealWindowRepository, cache MealWindowCache, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg MealWindowServiceConfig) *MealWindowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &MealWindowService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		location:  cfg.Location,
	}
}

// Location returns the meal timezone.
func (s *MealWindowService) Location() *time.Location {
	return s.location
}

// Bootstrap creates default windows for meal types that have never been configured.
func (s *MealWindowService) Bootstrap(ctx context.Context) error {
	inserted, err := s.repo.InsertMissing(ctx, models.DefaultMealWindows())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bootstrap meal windows")
	}
	if inserted > 0 {
		s.logger.Info("meal windows bootstrapped", zap.Int64("inserted", inserted))
		s.invalidate(ctx)
	}
	return nil
}

// List returns every window in canonical order, served from cache when possible.
func (s *MealWindowService) List(ctx context.Context) ([]models.MealWindow, error) {
	if s.cache != nil {
		if windows, ok := s.cache.Load(ctx); ok {
			s.metrics.RecordCacheOperation(true)
			return windows, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	windows, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Store(ctx, windows)
	}
	return windows, nil
}

func (s *MealWindowService) load(ctx context.Context) ([]models.MealWindow, error) {
	windows, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meal windows")
	}
	if len(windows) < len(models.AllMealTypes()) {
		if err := s.Bootstrap(ctx); err != nil {
			return nil, err
		}
		if windows, err = s.repo.List(ctx); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meal windows")
		}
	}
	models.SortMealWindows(windows)
	return windows, nil
}

// Get reads one window straight from the store.
func (s *MealWindowService) Get(ctx context.Context, mealType models.MealType) (*models.MealWindow, error) {
	if !mealType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown meal type %q", mealType))
	}
	window, err := s.repo.Get(ctx, mealType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("meal window %s not configured", mealType))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meal window")
	}
	return window, nil
}

// CurrentMealType returns the meal whose enabled window contains now. Overlaps resolve to the
// lexically first meal type.
func (s *MealWindowService) CurrentMealType(ctx context.Context, now time.Time) (models.MealType, bool, error) {
	windows, err := s.List(ctx)
	if err != nil {
		return "", false, err
	}
	at := models.ClockTimeOf(now.In(s.location))
	for _, w := range windows {
		if !w.Enabled || w.Wraps() {
			continue
		}
		if w.Contains(at) {
			return w.MealType, true, nil
		}
	}
	return "", false, nil
}

// Update validates and persists the full configuration, then notifies subscribers.
func (s *MealWindowService) Update(ctx context.Context, payload dto.MealWindowsPayload, actor string) ([]models.MealWindow, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meal window payload")
	}

	entries := payload.MealWindows.Entries()
	windows := make([]models.MealWindow, 0, len(entries))
	for _, mealType := range models.AllMealTypes() {
		window, err := buildMealWindow(mealType, entries[mealType])
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
	models.SortMealWindows(windows)

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	if err := s.repo.ReplaceAll(ctx, windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save meal windows")
	}
	s.invalidate(ctx)
	s.logger.Info("meal windows updated", zap.String("actor", actor))

	s.notify(ctx, windows)
	return cloneWindows(windows), nil
}

func buildMealWindow(mealType models.MealType, input *dto.MealWindowInput) (models.MealWindow, error) {
	if input == nil || input.Enabled == nil {
		return models.MealWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is required", mealType))
	}
	start, err := models.ParseClockTime(input.StartTime)
	if err != nil {
		return models.MealWindow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("%s startTime must be HH:MM", mealType))
	}
	end, err := models.ParseClockTime(input.EndTime)
	if err != nil {
		return models.MealWindow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("%s endTime must be HH:MM", mealType))
	}
	window := models.MealWindow{MealType: mealType, StartTime: start, EndTime: end, Enabled: *input.Enabled}
	if window.Wraps() {
		return models.MealWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s endTime must not be before startTime", mealType))
	}
	return window, nil
}

// Subscribe registers a listener for configuration changes.
func (s *MealWindowService) Subscribe(fn MealWindowListener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *MealWindowService) notify(ctx context.Context, windows []models.MealWindow) {
	s.mu.RLock()
	listeners := make([]MealWindowListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, cloneWindows(windows))
	}
}

func (s *MealWindowService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

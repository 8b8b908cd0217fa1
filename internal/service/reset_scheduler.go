package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/pkg/clock"
	"github.com/noah-isme/meal-gate-api/pkg/config"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
)

type attendanceResetter interface {
	DeleteByMeal(ctx context.Context, mealType models.MealType) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type resetPublisher interface {
	PublishReset(mealType models.MealType, deleted int64, at time.Time) error
}

const defaultResetLead = 30 * time.Minute

// ResetSchedulerConfig selects the reset policy and its timing. Lead must fall in (0, 24h); zero
// means the default of 30 minutes.
type ResetSchedulerConfig struct {
	Policy     string
	Lead       time.Duration
	FixedTimes []string
	Timeout    time.Duration
	Location   *time.Location
	Clock      clock.Clock
}

// ResetScheduler wipes the admission ledger on a daily schedule. Under the per-meal policy each
// enabled meal is cleared lead before its window opens; under the fixed policy the whole ledger is
// cleared at configured clock times. Only one policy is active.
type ResetScheduler struct {
	cron    *cron.Cron
	ledger  attendanceResetter
	events  resetPublisher
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ResetSchedulerConfig
	fixed   []models.ResetJobSpec

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	entries []cron.EntryID
	planned []models.ResetJobSpec
}

// NewResetScheduler builds a scheduler. It fails on an unknown policy or malformed fixed times.
func NewResetScheduler(ledger attendanceResetter, events resetPublisher, metrics *MetricsService, logger *zap.Logger, cfg ResetSchedulerConfig) (*ResetScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Policy == "" {
		cfg.Policy = config.ResetPolicyPerMeal
	}
	if cfg.Lead == 0 {
		cfg.Lead = defaultResetLead
	}
	if cfg.Lead < time.Minute || cfg.Lead >= 24*time.Hour {
		return nil, fmt.Errorf("reset lead %s must be between 1m and 24h", cfg.Lead)
	}

	s := &ResetScheduler{
		cron:    cron.New(cron.WithLocation(cfg.Location)),
		ledger:  ledger,
		events:  events,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "reset_scheduler"), zap.String("policy", cfg.Policy)),
		cfg:     cfg,
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	switch cfg.Policy {
	case config.ResetPolicyPerMeal:
	case config.ResetPolicyFixed:
		fixed, err := planFixedResets(cfg.FixedTimes)
		if err != nil {
			return nil, err
		}
		s.fixed = fixed
	default:
		return nil, fmt.Errorf("unsupported reset policy %q", cfg.Policy)
	}
	return s, nil
}

// PlanResets derives one reset per enabled window, triggered lead before the window opens.
// Triggers wrap across midnight. A trigger that lands inside its own window is left out, since it
// would clear admissions mid-service. The result is ordered by trigger time, then meal type.
func PlanResets(windows []models.MealWindow, lead time.Duration) []models.ResetJobSpec {
	specs, _ := planMealResets(windows, lead)
	return specs
}

func planMealResets(windows []models.MealWindow, lead time.Duration) ([]models.ResetJobSpec, []models.MealType) {
	specs := make([]models.ResetJobSpec, 0, len(windows))
	var skipped []models.MealType
	for _, w := range windows {
		if !w.Enabled {
			continue
		}
		trigger := w.StartTime.Minus(lead)
		if w.Contains(trigger) {
			skipped = append(skipped, w.MealType)
			continue
		}
		specs = append(specs, models.ResetJobSpec{MealType: w.MealType, Trigger: trigger})
	}
	sortResetSpecs(specs)
	return specs, skipped
}

func planFixedResets(times []string) ([]models.ResetJobSpec, error) {
	specs := make([]models.ResetJobSpec, 0, len(times))
	seen := make(map[models.ClockTime]struct{}, len(times))
	for _, raw := range times {
		at, err := models.ParseClockTime(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid fixed reset time %q: %w", raw, err)
		}
		if _, dup := seen[at]; dup {
			continue
		}
		seen[at] = struct{}{}
		specs = append(specs, models.ResetJobSpec{Trigger: at})
	}
	sortResetSpecs(specs)
	return specs, nil
}

func sortResetSpecs(specs []models.ResetJobSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Trigger != specs[j].Trigger {
			return specs[i].Trigger < specs[j].Trigger
		}
		return specs[i].MealType < specs[j].MealType
	})
}

// Reschedule drops every job this scheduler owns and registers the plan derived from windows.
// On failure the previous jobs stay in place.
func (s *ResetScheduler) Reschedule(_ context.Context, windows []models.MealWindow) error {
	plan := s.fixed
	if s.cfg.Policy == config.ResetPolicyPerMeal {
		var skipped []models.MealType
		plan, skipped = planMealResets(windows, s.cfg.Lead)
		for _, mealType := range skipped {
			s.logger.Warn("reset would fall inside its meal window, not scheduled",
				zap.String("meal_type", string(mealType)), zap.Duration("lead", s.cfg.Lead))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]cron.EntryID, 0, len(plan))
	for _, spec := range plan {
		spec := spec
		id, err := s.cron.AddFunc(spec.CronSpec(), func() { s.fire(spec) })
		if err != nil {
			for _, id := range added {
				s.cron.Remove(id)
			}
			return fmt.Errorf("schedule reset %s at %s: %w", describeReset(spec.MealType), spec.Trigger, err)
		}
		added = append(added, id)
	}

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = added
	s.planned = append([]models.ResetJobSpec(nil), plan...)

	s.logger.Info("reset jobs scheduled", zap.Int("jobs", len(plan)))
	return nil
}

// OnMealWindowsChanged adapts Reschedule to the registry's listener signature.
func (s *ResetScheduler) OnMealWindowsChanged(ctx context.Context, windows []models.MealWindow) {
	if err := s.Reschedule(ctx, windows); err != nil {
		s.logger.Error("reschedule resets", zap.Error(err))
	}
}

// Planned returns the jobs currently registered.
func (s *ResetScheduler) Planned() []models.ResetJobSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ResetJobSpec(nil), s.planned...)
}

// Start runs the cron engine. Job contexts derive from ctx.
func (s *ResetScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("reset scheduler started")
}

// Stop cancels in-flight runs and waits for them to return, bounded by ctx.
func (s *ResetScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("reset scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ResetScheduler) fire(spec models.ResetJobSpec) {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, s.cfg.Timeout)
	defer cancel()
	if spec.MealType == "" {
		_, _ = s.RunFullReset(ctx)
		return
	}
	_, _ = s.RunMealReset(ctx, spec.MealType)
}

// RunMealReset deletes every admission recorded for mealType. Running it twice deletes nothing
// the second time.
func (s *ResetScheduler) RunMealReset(ctx context.Context, mealType models.MealType) (int64, error) {
	if !mealType.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown meal type %q", mealType))
	}
	deleted, err := s.ledger.DeleteByMeal(ctx, mealType)
	return s.finish(mealType, deleted, err)
}

// RunFullReset wipes the whole ledger.
func (s *ResetScheduler) RunFullReset(ctx context.Context) (int64, error) {
	deleted, err := s.ledger.DeleteAll(ctx)
	return s.finish("", deleted, err)
}

func (s *ResetScheduler) finish(mealType models.MealType, deleted int64, err error) (int64, error) {
	s.metrics.RecordReset(mealType, deleted, err)
	if err != nil {
		s.logger.Error("attendance reset failed", zap.String("meal_type", describeReset(mealType)), zap.Error(err))
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset attendance")
	}
	s.logger.Info("attendance reset", zap.String("meal_type", describeReset(mealType)), zap.Int64("deleted", deleted))
	if s.events != nil {
		if err := s.events.PublishReset(mealType, deleted, s.cfg.Clock.Now()); err != nil {
			s.logger.Debug("reset event not published", zap.Error(err))
		}
	}
	return deleted, nil
}

func describeReset(mealType models.MealType) string {
	if mealType == "" {
		return "all"
	}
	return string(mealType)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/internal/roster"
	"github.com/noah-isme/meal-gate-api/pkg/clock"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
	"github.com/noah-isme/meal-gate-api/pkg/jobs"
)

type rosterSource interface {
	FetchAll(ctx context.Context) ([]roster.Record, error)
}

type rosterStudentStore interface {
	Upsert(ctx context.Context, student *models.Student) error
	ListIDs(ctx context.Context) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// RosterSyncJobType identifies roster runs on the job queue.
const RosterSyncJobType = "roster_sync"

// Roster sync triggers.
const (
	RosterTriggerCron   = "cron"
	RosterTriggerManual = "manual"
)

// RosterSyncServiceConfig tunes reconciliation.
type RosterSyncServiceConfig struct {
	// Tolerant continues past per-record failures and still prunes. The default aborts the run on
	// the first failure.
	Tolerant bool
	CronSpec string
	Timeout  time.Duration
	Location *time.Location
	Clock    clock.Clock
}

// RosterSyncService mirrors the external roster into the local students table.
type RosterSyncService struct {
	source  rosterSource
	store   rosterStudentStore
	metrics *MetricsService
	logger  *zap.Logger
	cfg     RosterSyncServiceConfig
	queue   *jobs.Queue
	cron    *cron.Cron
}

// NewRosterSyncService constructs the service and its single-worker queue.
func NewRosterSyncService(source rosterSource, store rosterStudentStore, metrics *MetricsService, logger *zap.Logger, cfg RosterSyncServiceConfig) *RosterSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	s := &RosterSyncService{
		source:  source,
		store:   store,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "roster_sync")),
		cfg:     cfg,
		cron:    cron.New(cron.WithLocation(cfg.Location)),
	}
	s.queue = jobs.NewQueue("roster-sync", s.handleJob, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		Timeout:    cfg.Timeout,
		Coalesce:   true,
		Logger:     logger,
	})
	return s
}

// Sync runs one full reconciliation.
func (s *RosterSyncService) Sync(ctx context.Context) (*dto.RosterSyncReport, error) {
	report, err := s.sync(ctx)
	s.metrics.RecordRosterSync(report, err)
	return report, err
}

func (s *RosterSyncService) sync(ctx context.Context) (*dto.RosterSyncReport, error) {
	report := &dto.RosterSyncReport{Tolerant: s.cfg.Tolerant, StartedAt: s.cfg.Clock.Now().UTC()}

	records, err := s.source.FetchAll(ctx)
	if err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch roster")
	}
	report.Fetched = len(records)

	external := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			if err := s.recordFailure(report, rec.ID, errors.New("missing student id")); err != nil {
				return report, err
			}
			continue
		}
		external[id] = struct{}{}

		student := &models.Student{
			ID:         id,
			Name:       strings.TrimSpace(rec.Name),
			Department: strings.TrimSpace(rec.Department),
			PhotoURL:   strings.TrimSpace(rec.PhotoURL),
		}
		if err := s.store.Upsert(ctx, student); err != nil {
			if err := s.recordFailure(report, id, err); err != nil {
				return report, err
			}
			continue
		}
		report.Upserted++
	}

	local, err := s.store.ListIDs(ctx)
	if err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list local roster")
	}
	stale := make([]string, 0)
	for _, id := range local {
		if _, ok := external[id]; !ok {
			stale = append(stale, id)
		}
	}
	deleted, err := s.store.DeleteByIDs(ctx, stale)
	if err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune roster")
	}
	report.Deleted = deleted
	report.FinishedAt = s.cfg.Clock.Now().UTC()
	return report, nil
}

// recordFailure returns a non-nil error when the run must abort.
func (s *RosterSyncService) recordFailure(report *dto.RosterSyncReport, studentID string, cause error) error {
	if !s.cfg.Tolerant {
		return appErrors.Wrap(cause, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("roster sync aborted at student %q", studentID))
	}
	report.Failures = append(report.Failures, dto.RosterSyncFailure{StudentID: studentID, Reason: cause.Error()})
	s.logger.Warn("roster record skipped", zap.String("student_id", studentID), zap.Error(cause))
	return nil
}

// RequestSync queues a run. Only one run is queued or in flight at a time.
func (s *RosterSyncService) RequestSync(trigger string) (*dto.RosterSyncAccepted, error) {
	job, err := s.queue.Enqueue(jobs.Job{Type: RosterSyncJobType, Trigger: trigger})
	if err != nil {
		if errors.Is(err, jobs.ErrAlreadyPending) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "roster sync already in progress")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "roster sync queue unavailable")
	}
	return &dto.RosterSyncAccepted{JobID: job.ID, Status: "queued"}, nil
}

func (s *RosterSyncService) handleJob(ctx context.Context, job jobs.Job) error {
	report, err := s.Sync(ctx)
	if err != nil {
		s.logger.Error("roster sync failed", zap.String("job_id", job.ID), zap.String("trigger", job.Trigger), zap.Error(err))
		return err
	}
	s.logger.Info("roster sync completed",
		zap.String("job_id", job.ID),
		zap.String("trigger", job.Trigger),
		zap.Int("fetched", report.Fetched),
		zap.Int("upserted", report.Upserted),
		zap.Int64("deleted", report.Deleted),
		zap.Int("failures", len(report.Failures)),
	)
	return nil
}

// Start launches the worker and, when a cron spec is configured, the nightly schedule.
func (s *RosterSyncService) Start(ctx context.Context) error {
	s.queue.Start(ctx)
	if s.cfg.CronSpec == "" {
		s.logger.Info("roster sync schedule disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		if _, err := s.RequestSync(RosterTriggerCron); err != nil {
			s.logger.Warn("scheduled roster sync skipped", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule roster sync %q: %w", s.cfg.CronSpec, err)
	}
	s.cron.Start()
	s.logger.Info("roster sync scheduled", zap.String("cron", s.cfg.CronSpec))
	return nil
}

// Stop halts the schedule and the worker. The worker is stopped even when ctx expires first.
func (s *RosterSyncService) Stop(ctx context.Context) error {
	defer s.queue.Stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

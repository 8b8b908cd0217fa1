package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/pkg/config"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
)

func TestPlanResets(t *testing.T) {
	windows := []models.MealWindow{
		window(models.MealLunch, "12:00", "14:00", true),
		window(models.MealBreakfast, "00:10", "02:00", true),
		window(models.MealDinner, "17:00", "20:00", true),
		window(models.MealLateNight, "22:00", "23:30", false),
	}

	plan := PlanResets(windows, 30*time.Minute)
	require.Len(t, plan, 3)
	assert.Equal(t, models.ResetJobSpec{MealType: models.MealLunch, Trigger: models.MustClockTime("11:30")}, plan[0])
	assert.Equal(t, models.ResetJobSpec{MealType: models.MealDinner, Trigger: models.MustClockTime("16:30")}, plan[1])
	assert.Equal(t, models.ResetJobSpec{MealType: models.MealBreakfast, Trigger: models.MustClockTime("23:40")}, plan[2])
	assert.Equal(t, "40 23 * * *", plan[2].CronSpec())
}

func TestPlanResetsIsPure(t *testing.T) {
	windows := models.DefaultMealWindows()
	assert.Equal(t, PlanResets(windows, 30*time.Minute), PlanResets(windows, 30*time.Minute))
	assert.Empty(t, PlanResets(nil, time.Hour))
}

func TestRescheduleReplacesAllJobs(t *testing.T) {
	s, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{Lead: 30 * time.Minute})
	require.NoError(t, err)

	require.NoError(t, s.Reschedule(context.Background(), models.DefaultMealWindows()))
	assert.Len(t, s.cron.Entries(), 3)

	onlyLunch := []models.MealWindow{window(models.MealLunch, "11:00", "13:00", true)}
	require.NoError(t, s.Reschedule(context.Background(), onlyLunch))
	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []models.ResetJobSpec{{MealType: models.MealLunch, Trigger: models.MustClockTime("10:30")}}, s.Planned())

	require.NoError(t, s.Reschedule(context.Background(), nil))
	assert.Empty(t, s.cron.Entries())
	assert.Empty(t, s.Planned())
}

func TestRegistryUpdateReschedulesResets(t *testing.T) {
	registry := newTestMealWindowService(newMemMealWindowRepo(models.DefaultMealWindows()...), nil)
	s, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{Lead: 30 * time.Minute})
	require.NoError(t, err)
	registry.Subscribe(s.OnMealWindowsChanged)

	_, err = registry.Update(context.Background(), fullPayload(), "admin-1")
	require.NoError(t, err)

	plan := s.Planned()
	require.Len(t, plan, 3)
	assert.Equal(t, models.ResetJobSpec{MealType: models.MealBreakfast, Trigger: models.MustClockTime("06:00")}, plan[0])
	assert.Equal(t, models.ResetJobSpec{MealType: models.MealLunch, Trigger: models.MustClockTime("11:00")}, plan[1])
	assert.Equal(t, models.ResetJobSpec{MealType: models.MealLateNight, Trigger: models.MustClockTime("20:30")}, plan[2])
}

func TestFixedPolicyIgnoresWindows(t *testing.T) {
	s, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{
		Policy:     config.ResetPolicyFixed,
		FixedTimes: []string{"16:30", "05:30", "11:30", "05:30"},
	})
	require.NoError(t, err)

	require.NoError(t, s.Reschedule(context.Background(), models.DefaultMealWindows()))
	plan := s.Planned()
	require.Len(t, plan, 3)
	for _, spec := range plan {
		assert.Empty(t, spec.MealType)
	}
	assert.Equal(t, models.MustClockTime("05:30"), plan[0].Trigger)
	assert.Len(t, s.cron.Entries(), 3)
}

func TestNewResetSchedulerRejectsBadConfig(t *testing.T) {
	_, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{Policy: "both"})
	assert.Error(t, err)

	_, err = NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{
		Policy:     config.ResetPolicyFixed,
		FixedTimes: []string{"5:30pm"},
	})
	assert.Error(t, err)
}

func TestRunMealResetIsIdempotent(t *testing.T) {
	ledger := newMemLedger()
	day := models.Day{Year: 2024, Month: time.March, Date: 1}
	for _, id := range []string{"S1", "S2"} {
		_, _ = ledger.InsertIfAbsent(context.Background(), &models.AttendanceRecord{StudentID: id, MealType: models.MealLunch, Day: day})
	}
	_, _ = ledger.InsertIfAbsent(context.Background(), &models.AttendanceRecord{StudentID: "S1", MealType: models.MealDinner, Day: day})

	events := &recordingPublisher{}
	s, err := NewResetScheduler(ledger, events, NewMetricsService(), nil, ResetSchedulerConfig{})
	require.NoError(t, err)

	deleted, err := s.RunMealReset(context.Background(), models.MealLunch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = s.RunMealReset(context.Background(), models.MealLunch)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 1, ledger.count())

	recorded := events.snapshot()
	require.Len(t, recorded, 2)
	assert.Equal(t, int64(2), recorded[0].deleted)
	assert.Equal(t, int64(0), recorded[1].deleted)
}

func TestRunFullReset(t *testing.T) {
	ledger := newMemLedger()
	day := models.Day{Year: 2024, Month: time.March, Date: 1}
	_, _ = ledger.InsertIfAbsent(context.Background(), &models.AttendanceRecord{StudentID: "S1", MealType: models.MealLunch, Day: day})
	_, _ = ledger.InsertIfAbsent(context.Background(), &models.AttendanceRecord{StudentID: "S1", MealType: models.MealDinner, Day: day})

	s, err := NewResetScheduler(ledger, nil, nil, nil, ResetSchedulerConfig{})
	require.NoError(t, err)

	deleted, err := s.RunFullReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Zero(t, ledger.count())
}

func TestRunMealResetFailures(t *testing.T) {
	ledger := newMemLedger()
	ledger.deleteErr = errors.New("lock timeout")
	events := &recordingPublisher{}
	s, err := NewResetScheduler(ledger, events, NewMetricsService(), nil, ResetSchedulerConfig{})
	require.NoError(t, err)

	_, err = s.RunMealReset(context.Background(), models.MealLunch)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))
	assert.Empty(t, events.snapshot())

	_, err = s.RunMealReset(context.Background(), "brunch")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestResetSchedulerStartStop(t *testing.T) {
	s, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{})
	require.NoError(t, err)
	require.NoError(t, s.Reschedule(context.Background(), models.DefaultMealWindows()))

	s.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestResetLeadMustStayOutsideWindow(t *testing.T) {
	for _, lead := range []time.Duration{-30 * time.Minute, 30 * time.Second, 24 * time.Hour, 48 * time.Hour} {
		_, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{Lead: lead})
		assert.Error(t, err, lead.String())
	}

	lunch := window(models.MealLunch, "12:00", "14:00", true)
	breakfast := window(models.MealBreakfast, "06:00", "09:00", true)

	// 23h before 12:00 is 13:00, inside lunch; 23h before 06:00 is 07:00, inside breakfast.
	assert.Empty(t, PlanResets([]models.MealWindow{lunch, breakfast}, 23*time.Hour))

	// 20h before 12:00 is 16:00, clear of lunch; breakfast's 10:00 is clear too.
	plan := PlanResets([]models.MealWindow{lunch, breakfast}, 20*time.Hour)
	require.Len(t, plan, 2)
	assert.Equal(t, models.MustClockTime("10:00"), plan[0].Trigger)
	assert.Equal(t, models.MustClockTime("16:00"), plan[1].Trigger)

	s, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{Lead: 23 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, s.Reschedule(context.Background(), []models.MealWindow{lunch}))
	assert.Empty(t, s.cron.Entries())
	assert.Empty(t, s.Planned())
}

func TestPlannedResetsNeverClearAnOpenMeal(t *testing.T) {
	lunch := window(models.MealLunch, "12:00", "14:00", true)
	for _, lead := range []time.Duration{time.Minute, 30 * time.Minute, 10 * time.Hour, 22 * time.Hour, 23*time.Hour + 59*time.Minute} {
		f := newGateFixture(t, lunch)
		resets, err := NewResetScheduler(f.ledger, nil, nil, nil, ResetSchedulerConfig{Lead: lead})
		require.NoError(t, err)
		require.NoError(t, resets.Reschedule(context.Background(), []models.MealWindow{lunch}))

		require.Equal(t, models.CheckInAllowed, f.svc.CheckIn(context.Background(), "S1", at("12:10")).Status)
		// replay every planned trigger that falls between the two scans
		for _, spec := range resets.Planned() {
			if spec.Trigger > models.MustClockTime("12:10") && spec.Trigger <= models.MustClockTime("13:50") {
				_, err := resets.RunMealReset(context.Background(), spec.MealType)
				require.NoError(t, err)
			}
		}
		assert.Equal(t, models.CheckInAlreadyUsed, f.svc.CheckIn(context.Background(), "S1", at("13:50")).Status, lead.String())
	}
}

func TestRescheduleFailureKeepsPreviousJobs(t *testing.T) {
	s, err := NewResetScheduler(newMemLedger(), nil, nil, nil, ResetSchedulerConfig{
		Policy:     config.ResetPolicyFixed,
		FixedTimes: []string{"05:30", "11:30"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Reschedule(context.Background(), nil))
	before := s.Planned()
	require.Len(t, s.cron.Entries(), 2)

	// hour 30 is rejected by the cron parser after 05:30 has been added
	s.fixed = []models.ResetJobSpec{{Trigger: models.MustClockTime("05:30")}, {Trigger: models.ClockTime(30 * 60)}}
	require.Error(t, s.Reschedule(context.Background(), nil))

	assert.Len(t, s.cron.Entries(), 2)
	assert.Equal(t, before, s.Planned())
}

func TestFiredResetUsesRunTimeoutAndStopsWithScheduler(t *testing.T) {
	ledger := newMemLedger()
	s, err := NewResetScheduler(ledger, nil, nil, nil, ResetSchedulerConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	spec := models.ResetJobSpec{MealType: models.MealLunch, Trigger: models.MustClockTime("11:30")}

	s.Start(context.Background())
	started := time.Now()
	s.fire(spec)
	deadline, ctxErr := ledger.lastDelete()
	assert.NoError(t, ctxErr)
	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, started.Add(5*time.Second), deadline, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	s.fire(spec)
	_, ctxErr = ledger.lastDelete()
	assert.ErrorIs(t, ctxErr, context.Canceled)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/internal/service"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
)

type rosterSyncRequesterMock struct {
	trigger string
	err     error
}

func (m *rosterSyncRequesterMock) RequestSync(trigger string) (*dto.RosterSyncAccepted, error) {
	m.trigger = trigger
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RosterSyncAccepted{JobID: "job-1", Status: "queued"}, nil
}

func TestRosterHandlerSyncAccepted(t *testing.T) {
	mock := &rosterSyncRequesterMock{}
	c, w := newJSONContext(http.MethodPost, "/roster/sync", "")

	NewRosterHandler(mock).Sync(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, service.RosterTriggerManual, mock.trigger)
	assert.JSONEq(t, `{"data":{"jobId":"job-1","status":"queued"}}`, w.Body.String())
}

func TestRosterHandlerSyncConflict(t *testing.T) {
	mock := &rosterSyncRequesterMock{err: appErrors.Clone(appErrors.ErrConflict, "roster sync already in progress")}
	c, w := newJSONContext(http.MethodPost, "/roster/sync", "")

	NewRosterHandler(mock).Sync(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

type attendanceCounterMock struct {
	err error
}

func (m attendanceCounterMock) Count(ctx context.Context, mealType models.MealType) (*dto.AttendanceCount, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AttendanceCount{MealType: mealType, Day: models.Day{Year: 2024, Month: 3, Date: 1}, Count: 87}, nil
}

func TestAttendanceHandlerCount(t *testing.T) {
	c, w := newJSONContext(http.MethodGet, "/attendance/count?mealType=dinner", "")
	NewAttendanceHandler(attendanceCounterMock{}).Count(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"mealType":"dinner","day":"2024-03-01","count":87}}`, w.Body.String())
}

func TestAttendanceHandlerCountRequiresMeal(t *testing.T) {
	c, w := newJSONContext(http.MethodGet, "/attendance/count", "")
	NewAttendanceHandler(attendanceCounterMock{}).Count(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	ok := NewMetricsHandler(nil, map[string]ReadinessCheck{"database": func(context.Context) error { return nil }})
	c, w := newJSONContext(http.MethodGet, "/ready", "")
	ok.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	down := NewMetricsHandler(nil, map[string]ReadinessCheck{"database": func(context.Context) error { return errors.New("refused") }})
	c, w = newJSONContext(http.MethodGet, "/ready", "")
	down.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordCheckIn(models.CheckInAllowed, models.MealLunch)
	c, w := newJSONContext(http.MethodGet, "/metrics", "")

	NewMetricsHandler(metrics, nil).Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `meal_checkins_total{meal_type="lunch",status="allowed"} 1`)
}

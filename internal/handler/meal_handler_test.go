package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/middleware"
	"github.com/noah-isme/meal-gate-api/internal/models"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
)

type checkInServiceMock struct {
	result dto.CheckInResult
	err    error
	got    dto.CheckInRequest
}

func (m *checkInServiceMock) Admit(ctx context.Context, req dto.CheckInRequest) (dto.CheckInResult, error) {
	m.got = req
	return m.result, m.err
}

func newJSONContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestCheckInHandlerReturnsOutcome(t *testing.T) {
	mock := &checkInServiceMock{result: dto.CheckInResult{
		Status:      models.CheckInBlocked,
		Message:     "lunch window closed",
		WindowStart: "12:00",
		WindowEnd:   "14:00",
		Student:     &dto.StudentSummary{ID: "S1", Name: "Ayu"},
	}}
	c, w := newJSONContext(http.MethodPost, "/checkin", `{"studentId":"S1"}`)

	NewCheckInHandler(mock).CheckIn(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S1", mock.got.StudentID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "data")
	assert.Equal(t, "blocked", body["status"])
	assert.Equal(t, "12:00", body["windowStart"])
	assert.Equal(t, "14:00", body["windowEnd"])
	assert.Equal(t, "S1", body["student"].(map[string]interface{})["id"])
}

func TestCheckInHandlerInvalidOmitsDetails(t *testing.T) {
	mock := &checkInServiceMock{result: dto.CheckInResult{Status: models.CheckInInvalid}}
	c, w := newJSONContext(http.MethodPost, "/checkin", `{"studentId":"ghost"}`)

	NewCheckInHandler(mock).CheckIn(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"invalid"}`, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCheckInHandlerBadBody(t *testing.T) {
	c, w := newJSONContext(http.MethodPost, "/checkin", `not json`)
	NewCheckInHandler(&checkInServiceMock{}).CheckIn(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckInHandlerValidationError(t *testing.T) {
	mock := &checkInServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "invalid check-in payload")}
	c, w := newJSONContext(http.MethodPost, "/checkin", `{}`)
	NewCheckInHandler(mock).CheckIn(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

type mealWindowManagerMock struct {
	windows   []models.MealWindow
	updateErr error
	actor     string
	payload   dto.MealWindowsPayload
}

func (m *mealWindowManagerMock) List(ctx context.Context) ([]models.MealWindow, error) {
	return m.windows, nil
}

func (m *mealWindowManagerMock) Update(ctx context.Context, payload dto.MealWindowsPayload, actor string) ([]models.MealWindow, error) {
	m.actor = actor
	m.payload = payload
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.windows, nil
}

type mealResetterMock struct {
	deleted int64
	err     error
	meal    models.MealType
}

func (m *mealResetterMock) RunMealReset(ctx context.Context, mealType models.MealType) (int64, error) {
	m.meal = mealType
	return m.deleted, m.err
}

func TestMealWindowHandlerList(t *testing.T) {
	handler := NewMealWindowHandler(&mealWindowManagerMock{windows: models.DefaultMealWindows()}, &mealResetterMock{})
	c, w := newJSONContext(http.MethodGet, "/meal-windows", "")

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var view dto.MealWindowsView
	decodeData(t, w, &view)
	require.Len(t, view.MealWindows, 4)
	assert.Equal(t, dto.MealWindowView{StartTime: "22:00", EndTime: "23:30", Enabled: false}, view.MealWindows[models.MealLateNight])
}

func TestMealWindowHandlerUpdatePassesActor(t *testing.T) {
	mock := &mealWindowManagerMock{windows: models.DefaultMealWindows()}
	handler := NewMealWindowHandler(mock, &mealResetterMock{})
	body := `{"mealWindows":{"breakfast":{"startTime":"06:00","endTime":"09:00","enabled":true},` +
		`"lunch":{"startTime":"12:00","endTime":"14:00","enabled":true},` +
		`"dinner":{"startTime":"17:00","endTime":"20:00","enabled":true},` +
		`"lateNight":{"startTime":"22:00","endTime":"23:30","enabled":false}}}`
	c, w := newJSONContext(http.MethodPut, "/meal-windows", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Email: "kitchen@school.test", Role: models.RoleAdmin})

	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kitchen@school.test", mock.actor)
	require.NotNil(t, mock.payload.MealWindows.LateNight)
	require.NotNil(t, mock.payload.MealWindows.LateNight.Enabled)
	assert.False(t, *mock.payload.MealWindows.LateNight.Enabled)
}

func TestMealWindowHandlerUpdateValidationFailure(t *testing.T) {
	mock := &mealWindowManagerMock{updateErr: appErrors.Clone(appErrors.ErrValidation, "lunch endTime must not be before startTime")}
	handler := NewMealWindowHandler(mock, &mealResetterMock{})
	c, w := newJSONContext(http.MethodPut, "/meal-windows", `{"mealWindows":{}}`)

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "endTime"))
}

func TestMealWindowHandlerReset(t *testing.T) {
	resets := &mealResetterMock{deleted: 12}
	handler := NewMealWindowHandler(&mealWindowManagerMock{}, resets)
	c, w := newJSONContext(http.MethodPost, "/meal-windows/lunch/reset", "")
	c.Params = gin.Params{{Key: "mealType", Value: "lunch"}}

	handler.Reset(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MealLunch, resets.meal)
	assert.JSONEq(t, `{"data":{"mealType":"lunch","deleted":12}}`, w.Body.String())
}

func TestMealWindowHandlerResetFailure(t *testing.T) {
	resets := &mealResetterMock{err: appErrors.Wrap(errors.New("db down"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset attendance")}
	handler := NewMealWindowHandler(&mealWindowManagerMock{}, resets)
	c, w := newJSONContext(http.MethodPost, "/meal-windows/lunch/reset", "")
	c.Params = gin.Params{{Key: "mealType", Value: "lunch"}}

	handler.Reset(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

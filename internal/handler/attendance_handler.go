package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/models"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
	"github.com/noah-isme/meal-gate-api/pkg/response"
)

type attendanceCounter interface {
	Count(ctx context.Context, mealType models.MealType) (*dto.AttendanceCount, error)
}

// AttendanceHandler exposes read-only ledger views.
type AttendanceHandler struct {
	service attendanceCounter
}

// NewAttendanceHandler builds a new handler.
func NewAttendanceHandler(service attendanceCounter) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Count godoc
// @Summary Count today's admissions for a meal
// @Tags Attendance
// @Produce json
// @Param mealType query string true "breakfast, lunch, dinner or lateNight"
// @Success 200 {object} response.Envelope
// @Router /attendance/count [get]
func (h *AttendanceHandler) Count(c *gin.Context) {
	mealType := c.Query("mealType")
	if mealType == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mealType is required"))
		return
	}
	count, err := h.service.Count(c.Request.Context(), models.MealType(mealType))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count)
}

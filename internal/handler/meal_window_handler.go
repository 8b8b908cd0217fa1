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

type mealWindowManager interface {
	List(ctx context.Context) ([]models.MealWindow, error)
	Update(ctx context.Context, payload dto.MealWindowsPayload, actor string) ([]models.MealWindow, error)
}

type mealResetter interface {
	RunMealReset(ctx context.Context, mealType models.MealType) (int64, error)
}

// MealWindowHandler exposes meal window configuration.
type MealWindowHandler struct {
	windows mealWindowManager
	resets  mealResetter
}

// NewMealWindowHandler builds a new handler.
func NewMealWindowHandler(windows mealWindowManager, resets mealResetter) *MealWindowHandler {
	return &MealWindowHandler{windows: windows, resets: resets}
}

// List godoc
// @Summary Get meal windows
// @Tags MealWindows
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meal-windows [get]
func (h *MealWindowHandler) List(c *gin.Context) {
	windows, err := h.windows.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewMealWindowsView(windows))
}

// Update godoc
// @Summary Replace meal windows
// @Tags MealWindows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MealWindowsPayload true "All four meal windows"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /meal-windows [put]
func (h *MealWindowHandler) Update(c *gin.Context) {
	var payload dto.MealWindowsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meal window payload"))
		return
	}
	windows, err := h.windows.Update(c.Request.Context(), payload, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewMealWindowsView(windows))
}

// Reset godoc
// @Summary Clear recorded admissions for a meal
// @Tags MealWindows
// @Produce json
// @Security BearerAuth
// @Param mealType path string true "breakfast, lunch, dinner or lateNight"
// @Success 200 {object} response.Envelope
// @Router /meal-windows/{mealType}/reset [post]
func (h *MealWindowHandler) Reset(c *gin.Context) {
	mealType := models.MealType(c.Param("mealType"))
	deleted, err := h.resets.RunMealReset(c.Request.Context(), mealType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ResetResult{MealType: mealType, Deleted: deleted})
}

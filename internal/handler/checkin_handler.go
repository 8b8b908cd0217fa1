package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
	"github.com/noah-isme/meal-gate-api/pkg/response"
)

type checkInService interface {
	Admit(ctx context.Context, req dto.CheckInRequest) (dto.CheckInResult, error)
}

// CheckInHandler serves scanning stations.
type CheckInHandler struct {
	service checkInService
}

// NewCheckInHandler builds a new handler.
func NewCheckInHandler(service checkInService) *CheckInHandler {
	return &CheckInHandler{service: service}
}

// CheckIn godoc
// @Summary Admit a student to the current meal
// @Description Always answers 200 with a bare body whose status is invalid, blocked, already_used, allowed or error.
// @Tags CheckIn
// @Accept json
// @Produce json
// @Param payload body dto.CheckInRequest true "Scanned student"
// @Success 200 {object} dto.CheckInResult
// @Failure 400 {object} response.Envelope
// @Router /checkin [post]
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	result, err := h.service.Admit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, result)
}

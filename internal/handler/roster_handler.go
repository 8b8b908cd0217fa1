package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/service"
	"github.com/noah-isme/meal-gate-api/pkg/response"
)

type rosterSyncRequester interface {
	RequestSync(trigger string) (*dto.RosterSyncAccepted, error)
}

// RosterHandler lets administrators trigger a roster reconciliation.
type RosterHandler struct {
	service rosterSyncRequester
}

// NewRosterHandler builds a new handler.
func NewRosterHandler(service rosterSyncRequester) *RosterHandler {
	return &RosterHandler{service: service}
}

// Sync godoc
// @Summary Queue a roster synchronisation
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /roster/sync [post]
func (h *RosterHandler) Sync(c *gin.Context) {
	accepted, err := h.service.RequestSync(service.RosterTriggerManual)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, accepted)
}

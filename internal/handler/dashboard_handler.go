package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/pkg/response"
)

type dashboardService interface {
	Get(ctx context.Context, identity models.Identity) (*dto.DashboardResponse, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Get godoc
// @Summary Role specific dashboard
// @Description Students get bookings and allowances, teachers get classes and granted limits
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.Get(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

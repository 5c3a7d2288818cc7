package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/pkg/response"
)

type limitService interface {
	Assign(ctx context.Context, identity models.Identity, req dto.AssignLimitRequest) (*models.WeeklyLimit, error)
	Update(ctx context.Context, identity models.Identity, id string, req dto.UpdateLimitRequest) (*models.WeeklyLimit, error)
	Delete(ctx context.Context, identity models.Identity, studentID string) error
	List(ctx context.Context, identity models.Identity) ([]models.LimitSummary, error)
}

// LimitHandler lets teachers manage weekly student allowances.
type LimitHandler struct {
	service limitService
}

// NewLimitHandler constructs the handler.
func NewLimitHandler(svc limitService) *LimitHandler {
	return &LimitHandler{service: svc}
}

// List godoc
// @Summary Weekly limits granted by the caller
// @Tags Limits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /limits [get]
func (h *LimitHandler) List(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Assign godoc
// @Summary Grant or replace a student's weekly limit
// @Description The student is matched by email or full name
// @Tags Limits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignLimitRequest true "Student and limit"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /limits [put]
func (h *LimitHandler) Assign(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.AssignLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid limit payload"))
		return
	}
	limit, err := h.service.Assign(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, limit, nil)
}

// Update godoc
// @Summary Change a weekly limit
// @Tags Limits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Limit ID"
// @Param payload body dto.UpdateLimitRequest true "New limit"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /limits/{id} [patch]
func (h *LimitHandler) Update(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid limit payload"))
		return
	}
	limit, err := h.service.Update(c.Request.Context(), identity, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, limit, nil)
}

// Delete godoc
// @Summary Revoke a student's weekly limit
// @Tags Limits
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /limits/students/{studentId} [delete]
func (h *LimitHandler) Delete(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	studentID, ok := uuidParam(c, "studentId")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), identity, studentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

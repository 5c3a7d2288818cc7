package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/pkg/response"
)

type enrollmentService interface {
	RequestEnrollment(ctx context.Context, identity models.Identity, req dto.EnrollRequest) (*models.EnrollmentRecord, error)
	CancelEnrollment(ctx context.Context, identity models.Identity, classID string) error
	ListMine(ctx context.Context, identity models.Identity) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes student booking endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Book a class
// @Description Enrolls the caller if the class has room and the weekly limit with its teacher allows it
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.EnrollRequest true "Class and teacher"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid enrollment payload"))
		return
	}
	record, err := h.service.RequestEnrollment(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Succeeds when no booking exists
// @Tags Enrollments
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /enrollments/{classId} [delete]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	classID, ok := uuidParam(c, "classId")
	if !ok {
		return
	}
	if err := h.service.CancelEnrollment(c.Request.Context(), identity, classID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListMine godoc
// @Summary Caller's bookings
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enrollments/me [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListMine(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

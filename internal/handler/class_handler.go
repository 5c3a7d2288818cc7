package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/pkg/response"
)

type classService interface {
	Catalog(ctx context.Context, identity models.Identity, query dto.CatalogQuery) ([]models.ClassDetail, error)
	Get(ctx context.Context, identity models.Identity, id string) (*models.ClassDetail, error)
	ListOwn(ctx context.Context, identity models.Identity) ([]models.TeacherClass, error)
	Create(ctx context.Context, identity models.Identity, req dto.ClassRequest) (*models.ClassSlot, error)
	Update(ctx context.Context, identity models.Identity, id string, req dto.ClassRequest) (*models.ClassSlot, error)
	Delete(ctx context.Context, identity models.Identity, id string) error
	ExportRoster(ctx context.Context, identity models.Identity, id, format string) (*dto.RosterExport, error)
}

type availabilityReader interface {
	AvailableSpots(ctx context.Context, classID string) (*models.Availability, error)
}

// ClassHandler serves the class catalog and teacher class management.
type ClassHandler struct {
	classes      classService
	availability availabilityReader
}

// NewClassHandler constructs the handler.
func NewClassHandler(classes classService, availability availabilityReader) *ClassHandler {
	return &ClassHandler{classes: classes, availability: availability}
}

// List godoc
// @Summary Class catalog
// @Description Classes ordered by day and start time with teacher name and availability
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param filter query string false "all, available or mine"
// @Param teacherId query string false "Only classes of this teacher"
// @Param day query int false "Day of week, 0 is Sunday"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	var query dto.CatalogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid catalog filter"))
		return
	}
	items, err := h.classes.Catalog(c.Request.Context(), identity, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Class detail
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.classes.Get(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Availability godoc
// @Summary Spots left in a class
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /classes/{id}/availability [get]
func (h *ClassHandler) Availability(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	availability, err := h.availability.AvailableSpots(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// ListOwn godoc
// @Summary Teacher's classes with rosters
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teacher/classes [get]
func (h *ClassHandler) ListOwn(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	items, err := h.classes.ListOwn(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid class payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Description Capacity cannot be lowered below the current enrollment count
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid class payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), identity, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Description Removes the class and every enrollment in it
// @Tags Classes
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.classes.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary Export class roster
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/roster [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	file, err := h.classes.ExportRoster(c.Request.Context(), identity, id, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	"github.com/noah-isme/coverage-api/pkg/response"
)

type timeOffService interface {
	Create(ctx context.Context, req dto.CreateTimeOffRequest, scope *models.RequestScope) (*models.TimeOffRequest, error)
	Cancel(ctx context.Context, id string, scope *models.RequestScope) (*models.TimeOffRequest, error)
	Approve(ctx context.Context, id string, scope *models.RequestScope) (*models.TimeOffRequest, error)
	Deny(ctx context.Context, id string, scope *models.RequestScope) (*models.TimeOffRequest, error)
	List(ctx context.Context, filter models.TimeOffFilter, scope *models.RequestScope) ([]models.TimeOffRequest, error)
}

// TimeOffHandler exposes teacher time-off requests and their review.
type TimeOffHandler struct {
	service timeOffService
}

// NewTimeOffHandler builds a new handler.
func NewTimeOffHandler(service timeOffService) *TimeOffHandler {
	return &TimeOffHandler{service: service}
}

// Create godoc
// @Summary Request time off
// @Tags TimeOff
// @Accept json
// @Produce json
// @Param payload body dto.CreateTimeOffRequest true "Time-off payload"
// @Success 201 {object} response.Envelope
// @Router /teachers/time-off [post]
func (h *TimeOffHandler) Create(c *gin.Context) {
	var req dto.CreateTimeOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "time off"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List godoc
// @Summary List time-off requests
// @Description Teachers see their own requests. Admins see their school's.
// @Tags TimeOff
// @Produce json
// @Param status query string false "pending, approved, denied or cancelled"
// @Param teacher_id query string false "Teacher ID (admins only)"
// @Param school query string false "School code (admins only)"
// @Success 200 {object} response.Envelope
// @Router /teachers/time-off [get]
// @Router /admin/time-off [get]
func (h *TimeOffHandler) List(c *gin.Context) {
	filter := models.TimeOffFilter{
		TeacherID:  c.Query("teacher_id"),
		SchoolCode: c.Query("school"),
		Status:     models.TimeOffStatus(c.Query("status")),
	}
	items, err := h.service.List(c.Request.Context(), filter, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Cancel godoc
// @Summary Cancel a pending time-off request
// @Tags TimeOff
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/time-off/{id}/cancel [post]
func (h *TimeOffHandler) Cancel(c *gin.Context) {
	h.respond(c, h.service.Cancel)
}

// Approve godoc
// @Summary Approve a pending time-off request
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /admin/time-off/{id}/approve [post]
func (h *TimeOffHandler) Approve(c *gin.Context) {
	h.respond(c, h.service.Approve)
}

// Deny godoc
// @Summary Deny a pending time-off request
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /admin/time-off/{id}/deny [post]
func (h *TimeOffHandler) Deny(c *gin.Context) {
	h.respond(c, h.service.Deny)
}

func (h *TimeOffHandler) respond(c *gin.Context, action func(context.Context, string, *models.RequestScope) (*models.TimeOffRequest, error)) {
	item, err := action(c.Request.Context(), c.Param("id"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
	"github.com/noah-isme/coverage-api/pkg/response"
)

type rosterService interface {
	List(ctx context.Context, filter models.StaffFilter, scope *models.RequestScope) ([]models.StaffMember, error)
	Hire(ctx context.Context, req dto.HireStaffRequest, scope *models.RequestScope) (*models.StaffMember, error)
	Deactivate(ctx context.Context, id string, scope *models.RequestScope) error
	MarkAbsent(ctx context.Context, teacherID string, scope *models.RequestScope) (*dto.MarkAbsentResponse, error)
	MarkReturned(ctx context.Context, id string, scope *models.RequestScope) (*models.StaffMember, error)
	AgeDepartment(ctx context.Context, req dto.AgeRosterRequest, scope *models.RequestScope) (int64, error)
}

// RosterHandler exposes roster administration endpoints.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler builds a new handler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

// List godoc
// @Summary List the roster in rotation order
// @Tags Admin
// @Produce json
// @Param school query string false "School code (defaults to caller scope)"
// @Param department query string false "Department"
// @Param role query string false "teacher or substitute"
// @Param status query string false "free, covering or absent"
// @Param include_inactive query bool false "Include deactivated members"
// @Success 200 {object} response.Envelope
// @Router /admin/roster [get]
func (h *RosterHandler) List(c *gin.Context) {
	filter := models.StaffFilter{
		SchoolCode:      c.Query("school"),
		Department:      c.Query("department"),
		Role:            models.StaffRole(c.Query("role")),
		Status:          models.StaffStatus(c.Query("status")),
		IncludeInactive: strings.EqualFold(c.Query("include_inactive"), "true"),
	}
	items, err := h.service.List(c.Request.Context(), filter, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Hire godoc
// @Summary Add a staff member to the back of the rotation
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.HireStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Router /admin/roster [post]
func (h *RosterHandler) Hire(c *gin.Context) {
	var req dto.HireStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "staff"))
		return
	}
	member, err := h.service.Hire(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// Deactivate godoc
// @Summary Remove a staff member from the rotation
// @Tags Admin
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /admin/roster/{id} [delete]
func (h *RosterHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), scopeFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SuccessResponse{Success: true}, nil)
}

// MarkAbsent godoc
// @Summary Mark a teacher absent and open their periods for today
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.MarkAbsentRequest true "Absence payload"
// @Success 200 {object} response.Envelope
// @Router /admin/mark-absent [post]
func (h *RosterHandler) MarkAbsent(c *gin.Context) {
	var req dto.MarkAbsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "absence"))
		return
	}
	if strings.TrimSpace(req.TeacherID) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required"))
		return
	}
	res, err := h.service.MarkAbsent(c.Request.Context(), req.TeacherID, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// MarkReturned godoc
// @Summary Clear a teacher's absence
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.MarkReturnedRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Router /admin/mark-returned [post]
func (h *RosterHandler) MarkReturned(c *gin.Context) {
	var req dto.MarkReturnedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "return"))
		return
	}
	if strings.TrimSpace(req.TeacherID) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required"))
		return
	}
	member, err := h.service.MarkReturned(c.Request.Context(), req.TeacherID, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// Age godoc
// @Summary Advance days since last coverage for a department
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.AgeRosterRequest true "Department payload"
// @Success 200 {object} response.Envelope
// @Router /admin/roster/age [post]
func (h *RosterHandler) Age(c *gin.Context) {
	var req dto.AgeRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "roster"))
		return
	}
	aged, err := h.service.AgeDepartment(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": aged}, nil)
}

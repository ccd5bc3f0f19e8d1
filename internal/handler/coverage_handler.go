package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	"github.com/noah-isme/coverage-api/pkg/response"
)

type coverageService interface {
	List(ctx context.Context, filter models.OpeningFilter, scope *models.RequestScope) ([]models.CoverageOpening, *models.Pagination, error)
	Get(ctx context.Context, id string, scope *models.RequestScope) (*dto.OpeningDetail, error)
	Candidates(ctx context.Context, id string, scope *models.RequestScope) ([]dto.RankedCandidate, error)
	CreateOpening(ctx context.Context, req dto.CreateOpeningRequest, scope *models.RequestScope) (*models.CoverageOpening, error)
	EmergencyAssign(ctx context.Context, req dto.EmergencyAssignRequest, scope *models.RequestScope) (*dto.EmergencyAssignResponse, error)
	Accept(ctx context.Context, req dto.AcceptJobRequest, scope *models.RequestScope) (*models.CoverageOpening, error)
	Confirm(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageOpening, error)
	Withdraw(ctx context.Context, req dto.WithdrawJobRequest, scope *models.RequestScope) (*models.CoverageOpening, error)
	CallOut(ctx context.Context, req dto.CallOutRequest, scope *models.RequestScope) (*models.CoverageOpening, error)
	Complete(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageLogEntry, error)
	Cancel(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageOpening, error)
}

// CoverageHandler exposes the coverage opening lifecycle.
type CoverageHandler struct {
	service coverageService
}

// NewCoverageHandler builds a new handler.
func NewCoverageHandler(service coverageService) *CoverageHandler {
	return &CoverageHandler{service: service}
}

// List godoc
// @Summary List coverage openings
// @Tags Coverage
// @Produce json
// @Param school query string false "School code (defaults to caller scope)"
// @Param status query string false "Opening status"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param assignee_id query string false "Assignee ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /coverage/openings [get]
func (h *CoverageHandler) List(c *gin.Context) {
	date, err := queryDate(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.OpeningFilter{
		SchoolCode: c.Query("school"),
		Status:     models.OpeningStatus(c.Query("status")),
		Date:       date,
		AssigneeID: c.Query("assignee_id"),
		TeacherID:  c.Query("teacher_id"),
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "page_size"),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an opening with its transition history
// @Tags Coverage
// @Produce json
// @Param id path string true "Opening ID"
// @Success 200 {object} response.Envelope
// @Router /coverage/openings/{id} [get]
func (h *CoverageHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Candidates godoc
// @Summary Rank eligible candidates for an opening
// @Tags Coverage
// @Produce json
// @Param id path string true "Opening ID"
// @Success 200 {object} response.Envelope
// @Router /coverage/openings/{id}/candidates [get]
func (h *CoverageHandler) Candidates(c *gin.Context) {
	items, err := h.service.Candidates(c.Request.Context(), c.Param("id"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Open a coverage slot
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.CreateOpeningRequest true "Opening payload"
// @Success 201 {object} response.Envelope
// @Router /coverage/openings [post]
func (h *CoverageHandler) Create(c *gin.Context) {
	var req dto.CreateOpeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "opening"))
		return
	}
	item, err := h.service.CreateOpening(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// EmergencyAssign godoc
// @Summary Open an urgent slot and offer it immediately
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.EmergencyAssignRequest true "Emergency payload"
// @Success 201 {object} response.Envelope
// @Router /admin/emergency-assign [post]
func (h *CoverageHandler) EmergencyAssign(c *gin.Context) {
	var req dto.EmergencyAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "emergency"))
		return
	}
	res, err := h.service.EmergencyAssign(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Accept godoc
// @Summary Accept an open job
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.AcceptJobRequest true "Accept payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutes/accept-job [post]
func (h *CoverageHandler) Accept(c *gin.Context) {
	var req dto.AcceptJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "accept"))
		return
	}
	item, err := h.service.Accept(c.Request.Context(), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AcceptJobResponse{Success: true, Assignment: item}, nil)
}

// Withdraw godoc
// @Summary Withdraw from an assignment with advance notice
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.WithdrawJobRequest true "Withdraw payload"
// @Success 200 {object} response.Envelope
// @Router /substitutes/withdraw-job [post]
func (h *CoverageHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "withdraw"))
		return
	}
	if _, err := h.service.Withdraw(c.Request.Context(), req, scopeFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SuccessResponse{Success: true}, nil)
}

// CallOut godoc
// @Summary Call out of an assignment
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.CallOutRequest true "Call-out payload"
// @Success 200 {object} response.Envelope
// @Router /substitutes/call-out [post]
func (h *CoverageHandler) CallOut(c *gin.Context) {
	var req dto.CallOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "call-out"))
		return
	}
	if _, err := h.service.CallOut(c.Request.Context(), req, scopeFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SuccessResponse{Success: true}, nil)
}

// Confirm godoc
// @Summary Confirm a requested assignment
// @Tags Coverage
// @Produce json
// @Param id path string true "Opening ID"
// @Success 200 {object} response.Envelope
// @Router /coverage/openings/{id}/confirm [post]
func (h *CoverageHandler) Confirm(c *gin.Context) {
	item, err := h.service.Confirm(c.Request.Context(), c.Param("id"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Complete godoc
// @Summary Complete a claimed opening and record the ledger entry
// @Tags Coverage
// @Produce json
// @Param id path string true "Opening ID"
// @Success 201 {object} response.Envelope
// @Router /coverage/openings/{id}/complete [post]
func (h *CoverageHandler) Complete(c *gin.Context) {
	entry, err := h.service.Complete(c.Request.Context(), c.Param("id"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Cancel godoc
// @Summary Cancel an open opening
// @Tags Coverage
// @Produce json
// @Param id path string true "Opening ID"
// @Success 200 {object} response.Envelope
// @Router /coverage/openings/{id}/cancel [post]
func (h *CoverageHandler) Cancel(c *gin.Context) {
	item, err := h.service.Cancel(c.Request.Context(), c.Param("id"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

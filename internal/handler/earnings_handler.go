package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	"github.com/noah-isme/coverage-api/pkg/response"
)

type earningsService interface {
	Summarize(ctx context.Context, assigneeID, asOf string, scope *models.RequestScope) (*dto.EarningsSummary, error)
	History(ctx context.Context, filter models.CoverageLogFilter, scope *models.RequestScope) ([]models.CoverageLogEntry, *models.Pagination, error)
	Verify(ctx context.Context, id string, scope *models.RequestScope) (*models.CoverageLogEntry, error)
	MarkPaid(ctx context.Context, id string, req dto.MarkPaidRequest, scope *models.RequestScope) (*models.CoverageLogEntry, error)
	OverrideAmount(ctx context.Context, id string, req dto.OverrideAmountRequest, scope *models.RequestScope) (*models.CoverageLogEntry, error)
}

type ledgerExporter interface {
	Export(ctx context.Context, filter models.CoverageLogFilter, format string, scope *models.RequestScope) (*dto.ExportFile, error)
}

// EarningsHandler serves earnings summaries and the coverage ledger.
type EarningsHandler struct {
	earnings earningsService
	exporter ledgerExporter
}

// NewEarningsHandler builds a new handler.
func NewEarningsHandler(earnings earningsService, exporter ledgerExporter) *EarningsHandler {
	return &EarningsHandler{earnings: earnings, exporter: exporter}
}

// Summary godoc
// @Summary Earnings summary for a substitute
// @Tags Earnings
// @Produce json
// @Param substitute_id query string false "Assignee ID (defaults to caller)"
// @Param as_of query string false "Reference date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutes/my-earnings [get]
func (h *EarningsHandler) Summary(c *gin.Context) {
	summary, err := h.earnings.Summarize(c.Request.Context(), c.Query("substitute_id"), c.Query("as_of"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// History godoc
// @Summary Coverage ledger history
// @Tags Earnings
// @Produce json
// @Param school query string false "School code (defaults to caller scope)"
// @Param status query string false "pending, verified or paid"
// @Param assignee_id query string false "Assignee ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /coverage/history [get]
func (h *EarningsHandler) History(c *gin.Context) {
	filter, err := ledgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.earnings.History(c.Request.Context(), filter, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export the coverage ledger
// @Tags Earnings
// @Produce text/csv
// @Produce application/pdf
// @Param school query string false "School code (defaults to caller scope)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /coverage/history/export [get]
func (h *EarningsHandler) Export(c *gin.Context) {
	filter, err := ledgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), filter, c.Query("format"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// Verify godoc
// @Summary Verify a pending ledger entry
// @Tags Earnings
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Success 200 {object} response.Envelope
// @Router /coverage/history/{id}/verify [post]
func (h *EarningsHandler) Verify(c *gin.Context) {
	entry, err := h.earnings.Verify(c.Request.Context(), c.Param("id"), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Pay godoc
// @Summary Mark a verified ledger entry paid
// @Tags Earnings
// @Accept json
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Param payload body dto.MarkPaidRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /coverage/history/{id}/pay [post]
func (h *EarningsHandler) Pay(c *gin.Context) {
	var req dto.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "payment"))
		return
	}
	entry, err := h.earnings.MarkPaid(c.Request.Context(), c.Param("id"), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// OverrideAmount godoc
// @Summary Override the amount of a pending ledger entry
// @Tags Earnings
// @Accept json
// @Produce json
// @Param id path string true "Ledger entry ID"
// @Param payload body dto.OverrideAmountRequest true "Amount payload"
// @Success 200 {object} response.Envelope
// @Router /coverage/history/{id}/amount [patch]
func (h *EarningsHandler) OverrideAmount(c *gin.Context) {
	var req dto.OverrideAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "amount"))
		return
	}
	entry, err := h.earnings.OverrideAmount(c.Request.Context(), c.Param("id"), req, scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

func ledgerFilter(c *gin.Context) (models.CoverageLogFilter, error) {
	from, err := queryDate(c, "from")
	if err != nil {
		return models.CoverageLogFilter{}, err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return models.CoverageLogFilter{}, err
	}
	return models.CoverageLogFilter{
		SchoolCode: c.Query("school"),
		AssigneeID: c.Query("assignee_id"),
		Status:     models.LogStatus(c.Query("status")),
		From:       from,
		To:         to,
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "page_size"),
	}, nil
}

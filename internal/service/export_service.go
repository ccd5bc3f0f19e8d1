package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
	"github.com/noah-isme/coverage-api/pkg/export"
)

// Supported ledger export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type ledgerLister interface {
	List(ctx context.Context, filter models.CoverageLogFilter) ([]models.CoverageLogEntry, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportService renders the ledger for payroll.
type ExportService struct {
	ledger ledgerLister
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the stock exporters.
func NewExportService(ledger ledgerLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{ledger: ledger, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Export renders every ledger entry matching the filter.
func (s *ExportService) Export(ctx context.Context, filter models.CoverageLogFilter, format string, scope *models.RequestScope) (*dto.ExportFile, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can export the ledger")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if filter.SchoolCode == "" {
		filter.SchoolCode = scope.SchoolCode
	}
	filter.Page, filter.PageSize = 0, 0

	entries, _, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load ledger")
	}
	generated := s.now().UTC()
	data := ledgerDataset(entries, filter, generated)

	file := &dto.ExportFile{
		Filename: fmt.Sprintf("coverage-ledger-%s-%s.%s", filter.SchoolCode, generated.Format("20060102-150405"), format),
	}
	switch format {
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Payload, err = s.pdf.Render(data)
	default:
		file.ContentType = "text/csv"
		file.Payload, err = s.csv.Render(data)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render ledger export")
	}
	s.logger.Info("ledger exported",
		zap.String("school_code", filter.SchoolCode), zap.String("format", format), zap.Int("rows", len(entries)))
	return file, nil
}

func ledgerDataset(entries []models.CoverageLogEntry, filter models.CoverageLogFilter, generated time.Time) export.Dataset {
	data := export.Dataset{
		Title:    "Coverage ledger",
		Subtitle: ledgerSubtitle(filter, generated),
		Columns: []export.Column{
			{Title: "Date"},
			{Title: "Entry", Width: 2.2},
			{Title: "Assignee", Width: 2.2},
			{Title: "School"},
			{Title: "Hours", Numeric: true},
			{Title: "Rate", Numeric: true},
			{Title: "Amount", Numeric: true},
			{Title: "Status"},
			{Title: "Payment Ref", Width: 1.5},
		},
		Rows: make([][]string, 0, len(entries)),
	}
	hours, amount := decimal.Zero, decimal.Zero
	for _, e := range entries {
		ref := ""
		if e.PaymentRef != nil {
			ref = *e.PaymentRef
		}
		data.Rows = append(data.Rows, []string{
			e.Date.Format(dto.DateLayout),
			e.ID,
			e.AssigneeID,
			e.SchoolCode,
			e.DurationHours.StringFixed(2),
			e.Rate.StringFixed(2),
			e.Amount.StringFixed(2),
			string(e.Status),
			ref,
		})
		hours = hours.Add(e.DurationHours)
		amount = amount.Add(e.Amount)
	}
	data.Totals = []string{"Total", fmt.Sprintf("%d entries", len(entries)), "", "", hours.StringFixed(2), "", amount.StringFixed(2), "", ""}
	return data
}

func ledgerSubtitle(filter models.CoverageLogFilter, generated time.Time) string {
	parts := []string{"School " + filter.SchoolCode}
	if filter.Status != "" {
		parts = append(parts, "status "+string(filter.Status))
	}
	if filter.From != nil {
		parts = append(parts, "from "+filter.From.Format(dto.DateLayout))
	}
	if filter.To != nil {
		parts = append(parts, "to "+filter.To.Format(dto.DateLayout))
	}
	parts = append(parts, "generated "+generated.Format(time.RFC3339))
	return strings.Join(parts, ", ")
}

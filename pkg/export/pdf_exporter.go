package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pdfUsableWidth = 277.0 // A4 landscape minus 10mm margins

// PDFExporter renders datasets into a landscape table with repeated headers and page numbers.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates the PDF document.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	widths := columnWidths(data.Columns)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, c := range data.Columns {
			pdf.CellFormat(widths[i], 8, c.Title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})

	pdf.AddPage()
	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, data.Title, "", 1, "C", false, 0, "")
	}
	if data.Subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, data.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)
	header()

	for _, row := range data.Rows {
		writeRow(pdf, data.Columns, widths, row)
	}
	if data.Totals != nil {
		pdf.SetFont("Arial", "B", 8)
		writeRow(pdf, data.Columns, widths, data.Totals)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(pdf *gofpdf.Fpdf, columns []Column, widths []float64, row []string) {
	for i, value := range row {
		align := "L"
		if columns[i].Numeric {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, value, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func columnWidths(columns []Column) []float64 {
	total := 0.0
	for _, c := range columns {
		total += weight(c)
	}
	widths := make([]float64, len(columns))
	for i, c := range columns {
		widths[i] = pdfUsableWidth * weight(c) / total
	}
	return widths
}

func weight(c Column) float64 {
	if c.Width <= 0 {
		return 1
	}
	return c.Width
}

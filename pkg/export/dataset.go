package export

import "fmt"

// Column describes one exported field.
type Column struct {
	Title string
	// Numeric columns are right-aligned in PDF output.
	Numeric bool
	// Width is a relative weight for PDF layout; zero means 1.
	Width float64
}

// Dataset is tabular export content. Totals, when present, is rendered as a closing row.
type Dataset struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     [][]string
	Totals   []string
}

func (d Dataset) validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset requires at least one column")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Columns))
		}
	}
	if d.Totals != nil && len(d.Totals) != len(d.Columns) {
		return fmt.Errorf("totals row has %d cells, want %d", len(d.Totals), len(d.Columns))
	}
	return nil
}

func (d Dataset) headers() []string {
	headers := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		headers[i] = c.Title
	}
	return headers
}

package parcellation

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Row is one region of an ROI table.
type Row struct {
	// Index is the string region identifier (the stringified label)
	Index string

	// Label is the originating integer label from the atlas
	Label int

	// Name is the human-readable region name; empty unless the table
	// carries names
	Name string

	// Values holds one numeric result per resolved metric, in metric order
	Values []float64
}

// Table is the result of one parcellation call: one row per distinct
// positive label present after masking, sorted by ascending label. Tables
// are constructed once per invocation and not mutated afterwards.
type Table struct {
	// Metrics are the resolved metric column names in requested order
	Metrics []string

	// HasNames reports whether rows carry LUT-derived region names
	HasNames bool

	// Rows are the per-region results in ascending label order
	Rows []Row
}

// Value returns the metric value for a region identified by its string index.
func (t *Table) Value(index, metric string) (float64, error) {
	col := -1
	for i, name := range t.Metrics {
		if name == metric {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, fmt.Errorf("no metric column %q in table", metric)
	}
	for _, row := range t.Rows {
		if row.Index == index {
			return row.Values[col], nil
		}
	}
	return 0, fmt.Errorf("no region %q in table", index)
}

// WriteTSV writes the table as tab-separated text with a header row. NaN
// cells are written empty, keeping delimited output loadable by common
// tabular readers.
func (t *Table) WriteTSV(w io.Writer) error {
	header := []string{"index", "label"}
	if t.HasNames {
		header = append(header, "name")
	}
	header = append(header, t.Metrics...)
	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return err
	}

	for _, row := range t.Rows {
		fields := []string{row.Index, strconv.Itoa(row.Label)}
		if t.HasNames {
			fields = append(fields, row.Name)
		}
		for _, v := range row.Values {
			fields = append(fields, formatCell(v))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

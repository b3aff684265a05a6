// Package ledger defines the tabular ledger the bot writes shipments into and the
// backends that store it. A ledger is a set of named sheets; each sheet is a list
// of string rows whose first row holds the column headers.
package ledger

import (
	"context"
	"strings"
)

// Gateway is the storage contract. Rows and columns are 1-based, row 1 is the
// header row.
type Gateway interface {
	// ReadAllRows returns every row of sheet, header row included.
	ReadAllRows(ctx context.Context, sheet string) ([][]string, error)
	// AppendRow adds row after the last row of sheet.
	AppendRow(ctx context.Context, sheet string, row []string) error
	// UpdateCell overwrites one cell.
	UpdateCell(ctx context.Context, sheet string, row, col int, value string) error
	// EnsureHeaders creates sheet if needed and makes headers its first row.
	EnsureHeaders(ctx context.Context, sheet string, headers []string) error
}

// Table is a read snapshot of a sheet with a header index.
type Table struct {
	rows    [][]string
	columns map[string]int
}

// NewTable indexes the header row of rows. Header names are matched trimmed and
// case-insensitive.
func NewTable(rows [][]string) *Table {
	t := &Table{rows: rows, columns: make(map[string]int)}
	if len(rows) == 0 {
		return t
	}
	for i, h := range rows[0] {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := t.columns[key]; !dup {
			t.columns[key] = i
		}
	}
	return t
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Column returns the 0-based index of the named column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.columns[normalizeHeader(name)]
	return i, ok
}

// DataRows is the number of rows below the header.
func (t *Table) DataRows() int {
	if len(t.rows) <= 1 {
		return 0
	}
	return len(t.rows) - 1
}

// Value returns the cell at ledger row number rowNum (2 is the first data row)
// under column name. Short rows read as empty.
func (t *Table) Value(rowNum int, name string) string {
	col, ok := t.Column(name)
	if !ok || rowNum < 1 || rowNum > len(t.rows) {
		return ""
	}
	row := t.rows[rowNum-1]
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// Each calls fn for every data row with its ledger row number.
func (t *Table) Each(fn func(rowNum int)) {
	for i := 2; i <= len(t.rows); i++ {
		fn(i)
	}
}

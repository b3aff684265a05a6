package gsheets

import (
	"fmt"
	"strings"
)

// ColumnLetters converts a 1-based column number to its A1 letters (1 is A, 27 is AA).
func ColumnLetters(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// QuoteSheet quotes a sheet title for use in an A1 range.
func QuoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// CellRange is the A1 range of a single cell.
func CellRange(sheet string, row, col int) string {
	return fmt.Sprintf("%s!%s%d", QuoteSheet(sheet), ColumnLetters(col), row)
}

// RowRange is the A1 range covering a whole row.
func RowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!%d:%d", QuoteSheet(sheet), row, row)
}

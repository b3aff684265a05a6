package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Gateway used for local runs and tests.
type Memory struct {
	mu     sync.RWMutex
	sheets map[string][][]string
}

var _ Gateway = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][][]string)}
}

// Seed replaces the content of sheet.
func (m *Memory) Seed(sheet string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = cloneRows(rows)
}

func (m *Memory) ReadAllRows(ctx context.Context, sheet string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.sheets[sheet]
	if !ok {
		return nil, ErrSheetNotFound.Msg(fmt.Sprintf("sheet %q not found", sheet))
	}
	return cloneRows(rows), nil
}

func (m *Memory) AppendRow(ctx context.Context, sheet string, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[sheet]
	if !ok {
		return ErrSheetNotFound.Msg(fmt.Sprintf("sheet %q not found", sheet))
	}
	m.sheets[sheet] = append(rows, append([]string(nil), row...))
	return nil
}

func (m *Memory) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if row < 1 || col < 1 {
		return ErrRowOutOfRange.Msg(fmt.Sprintf("invalid cell %d:%d", row, col))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[sheet]
	if !ok {
		return ErrSheetNotFound.Msg(fmt.Sprintf("sheet %q not found", sheet))
	}
	if row > len(rows) {
		return ErrRowOutOfRange.Msg(fmt.Sprintf("row %d is past the end of %q", row, sheet))
	}
	r := rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	rows[row-1] = r
	return nil
}

func (m *Memory) EnsureHeaders(ctx context.Context, sheet string, headers []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[sheet]
	h := append([]string(nil), headers...)
	if len(rows) == 0 {
		m.sheets[sheet] = [][]string{h}
		return nil
	}
	if !SameHeaders(rows[0], headers) {
		rows[0] = h
	}
	return nil
}

// SameHeaders compares header rows ignoring case and surrounding spaces.
func SameHeaders(have, want []string) bool {
	if len(have) < len(want) {
		return false
	}
	for i, w := range want {
		if normalizeHeader(have[i]) != normalizeHeader(w) {
			return false
		}
	}
	return true
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

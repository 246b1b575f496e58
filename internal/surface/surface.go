package surface

import (
	"context"
	"sync"
)

// RowUpdate replaces one data row. Index is 0-based below the header.
type RowUpdate struct {
	Index  int
	Values []string
}

// Surface is a worksheet with a header row followed by data rows
type Surface interface {
	// ReadAll returns the header row and every data row.
	ReadAll(ctx context.Context) (header []string, rows [][]string, err error)
	// WriteHeader replaces the header row.
	WriteHeader(ctx context.Context, header []string) error
	// UpdateRows replaces whole rows in one batch.
	UpdateRows(ctx context.Context, updates []RowUpdate) error
	// AppendRows adds rows after the last data row in one batch.
	AppendRows(ctx context.Context, rows [][]string) error
}

// Memory is an in-process Surface
type Memory struct {
	mu     sync.Mutex
	header []string
	rows   [][]string

	// WriteCalls counts header, update and append calls.
	WriteCalls int
	// FailWrites, when set, is returned by every write.
	FailWrites error
}

// NewMemory creates a surface holding the given header and rows.
func NewMemory(header []string, rows ...[]string) *Memory {
	m := &Memory{header: append([]string(nil), header...)}
	for _, r := range rows {
		m.rows = append(m.rows, append([]string(nil), r...))
	}
	return m
}

func (m *Memory) ReadAll(ctx context.Context) ([]string, [][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.header...), copyRows(m.rows), nil
}

func (m *Memory) WriteHeader(ctx context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.WriteCalls++
	m.header = append([]string(nil), header...)
	return nil
}

func (m *Memory) UpdateRows(ctx context.Context, updates []RowUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.WriteCalls++
	for _, u := range updates {
		for len(m.rows) <= u.Index {
			m.rows = append(m.rows, nil)
		}
		m.rows[u.Index] = append([]string(nil), u.Values...)
	}
	return nil
}

func (m *Memory) AppendRows(ctx context.Context, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.WriteCalls++
	m.rows = append(m.rows, copyRows(rows)...)
	return nil
}

// Snapshot returns a copy of the header and rows.
func (m *Memory) Snapshot() ([]string, [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.header...), copyRows(m.rows)
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

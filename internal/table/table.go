// Package table holds the in-memory rectangular dataset a session works on.
package table

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// Table is an ordered set of named columns and string rows.
// Every row has exactly len(Columns) cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// New builds a table from a header and raw records, padding or truncating
// records to the header width. Blank header cells get positional names and a
// repeated header becomes name.1, name.2 and so on.
func New(name string, header []string, records [][]string) *Table {
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		if seen[h] {
			base := h
			for k := 1; seen[h]; k++ {
				h = base + "." + strconv.Itoa(k)
			}
		}
		seen[h] = true
		cols[i] = h
	}
	t := &Table{Name: name, Columns: cols, Rows: make([][]string, 0, len(records))}
	for _, rec := range records {
		t.Rows = append(t.Rows, normalize(rec, len(cols)))
	}
	return t
}

func normalize(rec []string, n int) []string {
	row := make([]string, n)
	copy(row, rec)
	return row
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Index returns the position of the named column after trimming. An exact
// match wins; otherwise the first case-insensitive match is used. It returns
// -1 when the column does not exist.
func (t *Table) Index(name string) int {
	want := strings.TrimSpace(name)
	fold := -1
	for i, c := range t.Columns {
		if c == want {
			return i
		}
		if fold < 0 && strings.EqualFold(c, want) {
			fold = i
		}
	}
	return fold
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, true
}

// Head returns a table with at most n leading rows. The rows are shared.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: t.Rows[:n]}
}

// Clone returns a deep copy so callers may mutate it freely.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = normalize(r, len(r))
	}
	return &Table{Name: t.Name, Columns: cols, Rows: rows}
}

// Fingerprint is a content hash used as a cache key component.
func (t *Table) Fingerprint() string {
	h := sha1.New()
	h.Write([]byte(strings.Join(t.Columns, "\x1f")))
	for _, r := range t.Rows {
		h.Write([]byte{'\x1e'})
		h.Write([]byte(strings.Join(r, "\x1f")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Table is an in-memory tabular result. Cells are nil (null), string,
// int64, float64 or time.Time.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: make([][]any, 0)}
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// AddRow appends a row. Missing trailing cells are null.
func (t *Table) AddRow(cells ...any) {
	row := make([]any, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Column returns a copy of the named column's cells, or nil if absent.
func (t *Table) Column(name string) []any {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// SetColumn replaces the named column, appending it if absent.
// len(values) must equal Len().
func (t *Table) SetColumn(name string, values []any) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return
	}
	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
}

// Clone returns a deep copy of the row structure. Cell values are immutable.
func (t *Table) Clone() *Table {
	if t == nil {
		return NewTable()
	}
	out := NewTable(t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]any, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

// FromRecords builds the canonical ts/src/dst/length table.
func FromRecords(recs []PacketRecord) *Table {
	t := NewTable(CanonicalColumns...)
	t.Rows = make([][]any, 0, len(recs))
	for _, r := range recs {
		var ts any
		if r.HasTimestamp() {
			ts = r.TS
		}
		t.Rows = append(t.Rows, []any{ts, r.Src, r.Dst, r.Length})
	}
	return t
}

// Records reads the canonical columns back out of a table. Columns that
// are absent yield NaN, "" and 0 respectively.
func (t *Table) Records() []PacketRecord {
	if t == nil {
		return nil
	}
	tsIdx := t.ColumnIndex(ColTS)
	srcIdx := t.ColumnIndex(ColSrc)
	dstIdx := t.ColumnIndex(ColDst)
	lenIdx := t.ColumnIndex(ColLength)

	recs := make([]PacketRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := PacketRecord{TS: math.NaN()}
		if tsIdx >= 0 {
			if f, ok := Float(row[tsIdx]); ok {
				rec.TS = f
			}
		}
		if srcIdx >= 0 {
			rec.Src = String(row[srcIdx])
		}
		if dstIdx >= 0 {
			rec.Dst = String(row[dstIdx])
		}
		if lenIdx >= 0 {
			rec.Length = Length(row[lenIdx])
		}
		recs = append(recs, rec)
	}
	return recs
}

// lengthLimit is 2^63. float64(math.MaxInt64) rounds up to it, so any
// float at or above it would overflow int64.
const lengthLimit = float64(1 << 63)

// Length coerces a cell to a non-negative packet length. Missing,
// unparseable, negative and out-of-range values are 0.
func Length(v any) int64 {
	switch x := v.(type) {
	case int64:
		return max(x, 0)
	case int:
		return int64(max(x, 0))
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return max(n, 0)
		}
	}
	f, ok := Float(v)
	if !ok || f <= 0 || f >= lengthLimit {
		return 0
	}
	return int64(f)
}

// Float coerces a cell to float64.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case time.Time:
		return float64(x.UnixNano()) / 1e9, true
	}
	return 0, false
}

// String renders a cell as text; nil renders as "".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

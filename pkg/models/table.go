package models

import (
	"fmt"
	"strings"
)

// Table is an in-memory tabular dataset. Cells are kept as strings; numeric
// interpretation happens at the point of use (metrics, hierarchies).
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable creates an empty table with the given column names.
func NewTable(columns []string) *Table {
	return &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0),
	}
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of columns in the table.
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of the named column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// DistinctValues returns the set of distinct cell values in the named column.
func (t *Table) DistinctValues(name string) (map[string]struct{}, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	distinct := make(map[string]struct{})
	for _, row := range t.Rows {
		distinct[row[idx]] = struct{}{}
	}
	return distinct, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	clone := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		clone.Rows[i] = append([]string(nil), row...)
	}
	return clone
}

// AppendRow adds a row to the table. The row length must match the column count.
func (t *Table) AppendRow(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, append([]string(nil), row...))
	return nil
}

// String renders a short description, useful in log fields.
func (t *Table) String() string {
	return fmt.Sprintf("Table(%d columns, %d rows)", len(t.Columns), len(t.Rows))
}

// RowKey joins the cells of the given row at the given column indices into a
// deterministic grouping key. The unit separator keeps composite keys
// unambiguous even when cell values contain commas.
func (t *Table) RowKey(row int, columnIdx []int) string {
	parts := make([]string, len(columnIdx))
	for i, c := range columnIdx {
		parts[i] = t.Rows[row][c]
	}
	return strings.Join(parts, "\x1f")
}

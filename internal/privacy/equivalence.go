package privacy

import (
	"sort"

	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// ClassIndex groups the rows of a table into equivalence classes under a set
// of quasi-identifiers. Keys iterate in sorted order and row indices within a
// class keep their table order, so identical inputs always produce identical
// groupings regardless of row order.
//
// The index is always rebuilt from scratch after a generalization step:
// generalizing one attribute commonly merges previously distinct classes,
// which makes incremental patching error-prone for no meaningful gain at
// these table sizes.
type ClassIndex struct {
	Keys    []string
	Classes map[string][]int
}

// Classes partitions the table rows by their quasi-identifier value tuples.
func Classes(tbl *models.Table, quasiIdentifiers []string) (*ClassIndex, error) {
	columnIdx := make([]int, len(quasiIdentifiers))
	for i, qi := range quasiIdentifiers {
		idx := tbl.ColumnIndex(qi)
		if idx < 0 {
			return nil, errors.NewConfigurationError(errors.CodeUnknownAttribute, "quasi-identifier not present in table").
				WithCause(errors.ErrUnknownAttribute).
				WithContext("attribute", qi)
		}
		columnIdx[i] = idx
	}

	classes := make(map[string][]int)
	for row := range tbl.Rows {
		key := tbl.RowKey(row, columnIdx)
		classes[key] = append(classes[key], row)
	}

	keys := make([]string, 0, len(classes))
	for key := range classes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return &ClassIndex{Keys: keys, Classes: classes}, nil
}

// NumClasses returns the number of equivalence classes.
func (ci *ClassIndex) NumClasses() int {
	return len(ci.Keys)
}

// Sizes returns the class sizes in key order.
func (ci *ClassIndex) Sizes() []int {
	sizes := make([]int, len(ci.Keys))
	for i, key := range ci.Keys {
		sizes[i] = len(ci.Classes[key])
	}
	return sizes
}

// SmallestFirst returns the class keys ordered by ascending size, ties broken
// by key, matching the suppression order of the generalization driver.
func (ci *ClassIndex) SmallestFirst() []string {
	keys := append([]string(nil), ci.Keys...)
	sort.SliceStable(keys, func(i, j int) bool {
		si, sj := len(ci.Classes[keys[i]]), len(ci.Classes[keys[j]])
		if si != sj {
			return si < sj
		}
		return keys[i] < keys[j]
	})
	return keys
}

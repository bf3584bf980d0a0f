package anonymizer

import (
	"github.com/privplane/anonymizer/internal/hierarchy"
	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// Generalize derives the generalized view of a table: every quasi-identifier
// column is rewritten to its value at the level recorded in the state map.
// The input table always holds original (level 0) values, so the result is a
// function of (table, levels) alone and never of previous steps.
func Generalize(tbl *models.Table, quasiIdentifiers []string, levels map[string]int, hierarchies map[string]*hierarchy.Hierarchy) (*models.Table, error) {
	out := tbl.Clone()

	for _, qi := range quasiIdentifiers {
		level := levels[qi]
		if level == 0 {
			continue
		}

		h, ok := hierarchies[qi]
		if !ok {
			return nil, errors.NewHierarchyLoadError(errors.CodeMissingHierarchy, "quasi-identifier has no hierarchy loaded").
				WithCause(errors.ErrMissingHierarchy).
				WithContext("attribute", qi)
		}

		col := out.ColumnIndex(qi)
		if col < 0 {
			return nil, errors.NewConfigurationError(errors.CodeUnknownAttribute, "quasi-identifier not present in table").
				WithCause(errors.ErrUnknownAttribute).
				WithContext("attribute", qi)
		}

		for r := range out.Rows {
			generalized, err := h.Generalize(tbl.Rows[r][col], level)
			if err != nil {
				return nil, err
			}
			out.Rows[r][col] = generalized
		}
	}

	return out, nil
}

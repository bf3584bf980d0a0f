package privacy

import (
	"fmt"
	"math"

	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// LDiversity is satisfied when every equivalence class holds at least L
// well-represented values of every sensitive attribute in scope. The distinct
// variant counts distinct values; the entropy variant requires the class
// entropy to reach log(L).
//
// Sensitive attributes are never generalized, so their values are read
// straight from the current table; only row suppression changes them.
type LDiversity struct {
	L                   int
	Variant             models.DiversityVariant
	SensitiveAttributes []string
}

// Name returns the model name.
func (l *LDiversity) Name() string {
	return "l-diversity"
}

// Feasible fails when a sensitive attribute has fewer than l distinct values
// across the whole table: no amount of grouping increases diversity.
func (l *LDiversity) Feasible(tbl *models.Table) error {
	for _, attr := range l.SensitiveAttributes {
		distinct, err := tbl.DistinctValues(attr)
		if err != nil {
			return errors.NewConfigurationError(errors.CodeUnknownAttribute, "sensitive attribute not present in table").
				WithCause(errors.ErrUnknownAttribute).
				WithContext("attribute", attr)
		}
		if len(distinct) < l.L {
			return errors.NewPrivacyUnachievable(
				fmt.Sprintf("sensitive attribute %q has only %d distinct values, l=%d", attr, len(distinct), l.L)).
				WithContext("attribute", attr).
				WithContext("distinct_values", len(distinct)).
				WithContext("l", l.L)
		}
	}
	return nil
}

// Evaluate checks the diversity bound independently for each sensitive
// attribute; failing any one marks the class violating.
func (l *LDiversity) Evaluate(tbl *models.Table, idx *ClassIndex) (bool, map[string]struct{}, error) {
	if l.L <= 1 {
		return true, nil, nil
	}

	columnIdx := make([]int, len(l.SensitiveAttributes))
	for i, attr := range l.SensitiveAttributes {
		col := tbl.ColumnIndex(attr)
		if col < 0 {
			return false, nil, errors.NewConfigurationError(errors.CodeUnknownAttribute, "sensitive attribute not present in table").
				WithCause(errors.ErrUnknownAttribute).
				WithContext("attribute", attr)
		}
		columnIdx[i] = col
	}

	violating := make(map[string]struct{})
	for _, key := range idx.Keys {
		rows := idx.Classes[key]
		for _, col := range columnIdx {
			if !l.classDiverse(tbl, rows, col) {
				violating[key] = struct{}{}
				break
			}
		}
	}
	if len(violating) == 0 {
		return true, nil, nil
	}
	return false, violating, nil
}

func (l *LDiversity) classDiverse(tbl *models.Table, rows []int, col int) bool {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[tbl.Rows[row][col]]++
	}

	switch l.Variant {
	case models.DiversityEntropy:
		return classEntropy(counts, len(rows)) >= math.Log(float64(l.L))
	default:
		return len(counts) >= l.L
	}
}

// classEntropy computes the Shannon entropy (natural log) of the sensitive
// value distribution within one class.
func classEntropy(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log(p)
	}
	return entropy
}

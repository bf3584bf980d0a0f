package privacy

import (
	"math"

	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// TCloseness is satisfied when, for every class and every sensitive attribute
// in scope, the variational distance between the class's sensitive-value
// distribution and the global one is at most T.
//
// The global distribution is recomputed on each evaluation round: row
// suppression is the only operation that changes it, and evaluation always
// runs on the current table.
type TCloseness struct {
	T                   float64
	SensitiveAttributes []string
}

// Name returns the model name.
func (t *TCloseness) Name() string {
	return "t-closeness"
}

// Feasible always passes: the whole-table distribution is trivially 0-close
// to itself, so a single surviving class can always satisfy the bound.
func (t *TCloseness) Feasible(tbl *models.Table) error {
	for _, attr := range t.SensitiveAttributes {
		if tbl.ColumnIndex(attr) < 0 {
			return errors.NewConfigurationError(errors.CodeUnknownAttribute, "sensitive attribute not present in table").
				WithCause(errors.ErrUnknownAttribute).
				WithContext("attribute", attr)
		}
	}
	return nil
}

// Evaluate compares each class distribution against the global one per
// sensitive attribute.
func (t *TCloseness) Evaluate(tbl *models.Table, idx *ClassIndex) (bool, map[string]struct{}, error) {
	violating := make(map[string]struct{})

	for _, attr := range t.SensitiveAttributes {
		col := tbl.ColumnIndex(attr)
		if col < 0 {
			return false, nil, errors.NewConfigurationError(errors.CodeUnknownAttribute, "sensitive attribute not present in table").
				WithCause(errors.ErrUnknownAttribute).
				WithContext("attribute", attr)
		}

		global := columnDistribution(tbl, col)

		for _, key := range idx.Keys {
			if _, done := violating[key]; done {
				continue
			}
			local := classDistribution(tbl, idx.Classes[key], col)
			if variationalDistance(local, global) > t.T {
				violating[key] = struct{}{}
			}
		}
	}

	if len(violating) == 0 {
		return true, nil, nil
	}
	return false, violating, nil
}

// Distance computes the per-class distance to the global distribution for one
// sensitive attribute, keyed by class. Exposed for the metrics engine and the
// post-run guarantee checks.
func (t *TCloseness) Distance(tbl *models.Table, idx *ClassIndex, attribute string) (map[string]float64, error) {
	col := tbl.ColumnIndex(attribute)
	if col < 0 {
		return nil, errors.NewConfigurationError(errors.CodeUnknownAttribute, "sensitive attribute not present in table").
			WithCause(errors.ErrUnknownAttribute).
			WithContext("attribute", attribute)
	}

	global := columnDistribution(tbl, col)
	distances := make(map[string]float64, len(idx.Keys))
	for _, key := range idx.Keys {
		local := classDistribution(tbl, idx.Classes[key], col)
		distances[key] = variationalDistance(local, global)
	}
	return distances, nil
}

func columnDistribution(tbl *models.Table, col int) map[string]float64 {
	counts := make(map[string]int)
	for _, row := range tbl.Rows {
		counts[row[col]]++
	}
	return normalize(counts, len(tbl.Rows))
}

func classDistribution(tbl *models.Table, rows []int, col int) map[string]float64 {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[tbl.Rows[row][col]]++
	}
	return normalize(counts, len(rows))
}

func normalize(counts map[string]int, total int) map[string]float64 {
	freq := make(map[string]float64, len(counts))
	if total == 0 {
		return freq
	}
	for v, c := range counts {
		freq[v] = float64(c) / float64(total)
	}
	return freq
}

// variationalDistance is half the L1 distance between two discrete
// distributions, i.e. the equal-distance EMD over categorical values.
func variationalDistance(p, q map[string]float64) float64 {
	distance := 0.0
	for v, pv := range p {
		distance += math.Abs(pv - q[v])
	}
	for v, qv := range q {
		if _, ok := p[v]; !ok {
			distance += qv
		}
	}
	return distance / 2
}

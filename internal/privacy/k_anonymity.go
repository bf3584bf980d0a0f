package privacy

import (
	"fmt"

	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// KAnonymity is satisfied when every equivalence class holds at least K rows.
type KAnonymity struct {
	K int
}

// Name returns the model name.
func (k *KAnonymity) Name() string {
	return "k-anonymity"
}

// Feasible fails when k exceeds the total row count: no generalization can
// produce a class larger than the table.
func (k *KAnonymity) Feasible(tbl *models.Table) error {
	if k.K > tbl.NumRows() {
		return errors.NewPrivacyUnachievable(
			fmt.Sprintf("k=%d exceeds the %d rows in the dataset", k.K, tbl.NumRows())).
			WithContext("k", k.K).
			WithContext("rows", tbl.NumRows())
	}
	return nil
}

// Evaluate checks every class size against k. k <= 1 is trivially satisfied.
func (k *KAnonymity) Evaluate(tbl *models.Table, idx *ClassIndex) (bool, map[string]struct{}, error) {
	if k.K <= 1 {
		return true, nil, nil
	}

	violating := make(map[string]struct{})
	for _, key := range idx.Keys {
		if len(idx.Classes[key]) < k.K {
			violating[key] = struct{}{}
		}
	}
	if len(violating) == 0 {
		return true, nil, nil
	}
	return false, violating, nil
}

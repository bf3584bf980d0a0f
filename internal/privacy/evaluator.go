package privacy

import (
	"github.com/privplane/anonymizer/pkg/models"
)

// Evaluator is a pure predicate over the current table and its equivalence
// classes. Evaluate returns whether the model holds and, when it does not,
// the keys of the violating classes.
//
// Evaluators compose sequentially: the generalization driver consumes an
// ordered list (k-anonymity, then l-diversity, then t-closeness) and only
// evaluates a model once every earlier one passes.
type Evaluator interface {
	Name() string

	// Feasible reports, before any generalization, whether the model can be
	// satisfied on the given table at all. An infeasible model fails the run
	// immediately instead of exhausting the generalization lattice.
	Feasible(tbl *models.Table) error

	Evaluate(tbl *models.Table, idx *ClassIndex) (bool, map[string]struct{}, error)
}

// BuildEvaluators assembles the active evaluators in their fixed precedence
// order from a set of privacy constraints.
func BuildEvaluators(constraints models.Constraints, sensitiveAttributes []string) []Evaluator {
	var evaluators []Evaluator
	if constraints.K != nil {
		evaluators = append(evaluators, &KAnonymity{K: *constraints.K})
	}
	if constraints.L != nil {
		variant := constraints.LVariant
		if variant == "" {
			variant = models.DiversityDistinct
		}
		evaluators = append(evaluators, &LDiversity{
			L:                   *constraints.L,
			Variant:             variant,
			SensitiveAttributes: sensitiveAttributes,
		})
	}
	if constraints.T != nil {
		evaluators = append(evaluators, &TCloseness{
			T:                   *constraints.T,
			SensitiveAttributes: sensitiveAttributes,
		})
	}
	return evaluators
}

package models

// DiversityVariant selects how l-diversity counts sensitive values.
type DiversityVariant string

const (
	DiversityDistinct DiversityVariant = "distinct"
	DiversityEntropy  DiversityVariant = "entropy"
)

// Constraints describes the active privacy models and their parameters.
// A nil parameter means the corresponding model is inactive.
type Constraints struct {
	K *int     `json:"k,omitempty"`
	L *int     `json:"l,omitempty"`
	T *float64 `json:"t,omitempty"`

	// LVariant applies only when L is set; empty means distinct.
	LVariant DiversityVariant `json:"l_variant,omitempty"`

	// SuppressionLimit is the maximum percentage (0-100) of original rows
	// that may be suppressed. It carries no implicit default and must be set
	// whenever a model is active.
	SuppressionLimit float64 `json:"suppression_limit"`
}

// Active reports whether any privacy model is requested.
func (c Constraints) Active() bool {
	return c.K != nil || c.L != nil || c.T != nil
}

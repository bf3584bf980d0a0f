package hierarchy

import (
	"sort"

	"github.com/privplane/anonymizer/pkg/errors"
)

// SuppressionSymbol is the terminal generalization value every hierarchy
// must end in.
const SuppressionSymbol = "*"

// Hierarchy holds the generalization levels for one quasi-identifying
// attribute. Level 0 is the original value, MaxLevel is full suppression.
// A Hierarchy is immutable after load and safe to share across concurrent
// runs.
type Hierarchy struct {
	attribute string
	maxLevel  int
	// mappings holds, per original value, its generalization at every level
	// including level 0.
	mappings map[string][]string
}

// Attribute returns the quasi-identifier this hierarchy belongs to.
func (h *Hierarchy) Attribute() string {
	return h.attribute
}

// MaxLevel returns the index of the full-suppression level.
func (h *Hierarchy) MaxLevel() int {
	return h.maxLevel
}

// Covers reports whether the hierarchy defines mappings for the value.
func (h *Hierarchy) Covers(value string) bool {
	_, ok := h.mappings[value]
	return ok
}

// Generalize maps an original value to its representation at the given level.
func (h *Hierarchy) Generalize(value string, level int) (string, error) {
	if level < 0 || level > h.maxLevel {
		return "", errors.NewHierarchyLoadError(errors.CodeOutOfRange, "generalization level out of range").
			WithContext("attribute", h.attribute).
			WithContext("level", level).
			WithContext("max_level", h.maxLevel)
	}
	levels, ok := h.mappings[value]
	if !ok {
		return "", errors.NewHierarchyLoadError(errors.CodeHierarchyCoverage, "value not covered by hierarchy").
			WithCause(errors.ErrHierarchyCoverage).
			WithContext("attribute", h.attribute).
			WithContext("value", value)
	}
	return levels[level], nil
}

// ReverseImage returns the original (level 0) values that generalize to the
// given value at the given level, in sorted order for determinism.
func (h *Hierarchy) ReverseImage(value string, level int) []string {
	if level < 0 || level > h.maxLevel {
		return nil
	}
	var originals []string
	for original, levels := range h.mappings {
		if levels[level] == value {
			originals = append(originals, original)
		}
	}
	sort.Strings(originals)
	return originals
}

// DomainSize returns the number of distinct original values the hierarchy
// defines.
func (h *Hierarchy) DomainSize() int {
	return len(h.mappings)
}

// Domain returns the sorted original values.
func (h *Hierarchy) Domain() []string {
	values := make([]string, 0, len(h.mappings))
	for v := range h.mappings {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// LevelOfValue returns the lowest level at which the given value appears, or
// -1 when the value appears at no level. Used to recover the transformation
// applied by an external engine from its output alone.
func (h *Hierarchy) LevelOfValue(value string) int {
	for level := 0; level <= h.maxLevel; level++ {
		for _, levels := range h.mappings {
			if levels[level] == value {
				return level
			}
		}
	}
	return -1
}

// MissingValues returns, sorted, the dataset values not covered by the
// hierarchy. An empty result means full coverage.
func (h *Hierarchy) MissingValues(values map[string]struct{}) []string {
	var missing []string
	for v := range values {
		if !h.Covers(v) {
			missing = append(missing, v)
		}
	}
	sort.Strings(missing)
	return missing
}

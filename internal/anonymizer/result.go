package anonymizer

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/privplane/anonymizer/internal/dataset"
	"github.com/privplane/anonymizer/internal/hierarchy"
	"github.com/privplane/anonymizer/internal/metrics"
	"github.com/privplane/anonymizer/pkg/models"
)

// Result is the immutable product of one anonymization run: the generalized
// table, the chosen generalization level per quasi-identifier, the
// suppression count and the elapsed wall-clock time. Quality metrics are
// computed on demand and cached by metric name; the cache is the only
// internal mutability and is guarded for concurrent callers.
type Result struct {
	RunID string

	original   *models.Table
	survivors  *models.Table
	anonymized *models.Table
	levels     map[string]int
	suppressed int
	elapsed    time.Duration

	engine *metrics.Engine

	mu    sync.Mutex
	cache map[string]float64
}

// NewResult assembles a result. survivors holds the unsuppressed rows with
// original values, aligned with the anonymized table.
func NewResult(original, survivors, anonymized *models.Table, roles models.AttributeRoles, hierarchies map[string]*hierarchy.Hierarchy, levels map[string]int, suppressed int, elapsed time.Duration) *Result {
	return &Result{
		RunID:      uuid.NewString(),
		original:   original,
		survivors:  survivors,
		anonymized: anonymized,
		levels:     levels,
		suppressed: suppressed,
		elapsed:    elapsed,
		engine:     metrics.NewEngine(survivors, anonymized, roles, hierarchies, levels),
		cache:      make(map[string]float64),
	}
}

// AnonymizedTable returns the generalized/suppressed table.
func (r *Result) AnonymizedTable() *models.Table {
	return r.anonymized
}

// OriginalTable returns the dataset as it was loaded.
func (r *Result) OriginalTable() *models.Table {
	return r.original
}

// Transformations returns the generalization level chosen per
// quasi-identifying attribute.
func (r *Result) Transformations() map[string]int {
	out := make(map[string]int, len(r.levels))
	for k, v := range r.levels {
		out[k] = v
	}
	return out
}

// SuppressedRecords returns how many rows were removed entirely.
func (r *Result) SuppressedRecords() int {
	return r.suppressed
}

// Elapsed returns the wall-clock duration of the run.
func (r *Result) Elapsed() time.Duration {
	return r.elapsed
}

// ExportCSV writes the anonymized table as CSV. Reloading the output
// reproduces the table exactly, same values and row order.
func (r *Result) ExportCSV(w io.Writer) error {
	return dataset.WriteCSV(w, r.anonymized)
}

// StoreCSV writes the anonymized table to the named file.
func (r *Result) StoreCSV(path string) error {
	return dataset.WriteCSVFile(path, r.anonymized)
}

func (r *Result) cached(name string, compute func() (float64, error)) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[name]; ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	r.cache[name] = v
	return v, nil
}

// EquivalenceClassStats returns count, min, max and mean class size.
func (r *Result) EquivalenceClassStats() (metrics.ClassStats, error) {
	return r.engine.EquivalenceClassStats()
}

// AverageClassSize returns the mean equivalence-class size.
func (r *Result) AverageClassSize() (float64, error) {
	return r.cached("average_class_size", r.engine.AverageClassSize)
}

// Discernibility returns the sum of squared equivalence-class sizes.
func (r *Result) Discernibility() (float64, error) {
	return r.cached("discernibility", r.engine.Discernibility)
}

// Granularity returns the domain-collapse fraction for one quasi-identifier.
func (r *Result) Granularity(attribute string) (float64, error) {
	return r.cached("granularity/"+attribute, func() (float64, error) {
		return r.engine.Granularity(attribute)
	})
}

// GeneralizationIntensity returns level / max level for one quasi-identifier.
func (r *Result) GeneralizationIntensity(attribute string) (float64, error) {
	return r.cached("generalization_intensity/"+attribute, func() (float64, error) {
		return r.engine.GeneralizationIntensity(attribute)
	})
}

// NonUniformEntropy returns the reverse-mapping information loss for one
// quasi-identifier.
func (r *Result) NonUniformEntropy(attribute string) (float64, error) {
	return r.cached("non_uniform_entropy/"+attribute, func() (float64, error) {
		return r.engine.NonUniformEntropy(attribute)
	})
}

// RecordLevelSquaredError returns the per-record mean squared generalization
// error across numeric quasi-identifiers.
func (r *Result) RecordLevelSquaredError() (float64, error) {
	return r.cached("record_level_squared_error", r.engine.RecordLevelSquaredError)
}

// AttributeLevelSquaredError returns the mean squared generalization error of
// one numeric quasi-identifier.
func (r *Result) AttributeLevelSquaredError(attribute string) (float64, error) {
	return r.cached("attribute_level_squared_error/"+attribute, func() (float64, error) {
		return r.engine.AttributeLevelSquaredError(attribute)
	})
}

// SSESST returns the squared error normalized by total squared deviation.
func (r *Result) SSESST() (float64, error) {
	return r.cached("ssesst", r.engine.SSESST)
}

// Ambiguity returns the combined interpretive uncertainty across all
// quasi-identifiers.
func (r *Result) Ambiguity() (float64, error) {
	return r.cached("ambiguity", r.engine.Ambiguity)
}

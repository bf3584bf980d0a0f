package metrics

import (
	"fmt"
	"math"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/stat"

	"github.com/privplane/anonymizer/internal/hierarchy"
	"github.com/privplane/anonymizer/internal/privacy"
	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// Engine computes the quality metrics of an anonymization outcome. All
// methods are pure functions of the constructor inputs: the surviving rows
// with their original values, the generalized table aligned row-for-row with
// them, the role assignment, the hierarchies and the realized generalization
// levels.
//
// Metrics degrade gracefully: a metric requested for an attribute outside its
// applicable role, or on a table left empty by suppression, returns a
// MetricUnavailable error and never panics.
type Engine struct {
	original    *models.Table
	anonymized  *models.Table
	roles       models.AttributeRoles
	hierarchies map[string]*hierarchy.Hierarchy
	levels      map[string]int
}

// ClassStats aggregates equivalence-class sizes.
type ClassStats struct {
	Count   int     `json:"count"`
	MinSize int     `json:"min_size"`
	MaxSize int     `json:"max_size"`
	AvgSize float64 `json:"avg_size"`
}

// NewEngine creates a metrics engine over one anonymization outcome.
func NewEngine(original, anonymized *models.Table, roles models.AttributeRoles, hierarchies map[string]*hierarchy.Hierarchy, levels map[string]int) *Engine {
	return &Engine{
		original:    original,
		anonymized:  anonymized,
		roles:       roles,
		hierarchies: hierarchies,
		levels:      levels,
	}
}

// aligned verifies that the original-value rows line up one-to-one with the
// anonymized rows. Record-aligned metrics are unavailable without it, e.g.
// when an external engine suppressed rows without reporting which ones.
func (e *Engine) aligned() error {
	if e.original.NumRows() != e.anonymized.NumRows() {
		return errors.NewMetricUnavailable("original rows are not aligned with the anonymized table").
			WithContext("original_rows", e.original.NumRows()).
			WithContext("anonymized_rows", e.anonymized.NumRows())
	}
	return nil
}

func (e *Engine) classes() (*privacy.ClassIndex, error) {
	if e.anonymized.NumRows() == 0 {
		return nil, errors.NewMetricUnavailable("all rows were suppressed, no equivalence classes remain")
	}
	return privacy.Classes(e.anonymized, e.roles.QuasiIdentifying)
}

func (e *Engine) quasiIdentifier(attribute string) (*hierarchy.Hierarchy, int, error) {
	role, ok := e.roles.RoleOf(attribute)
	if !ok {
		return nil, 0, errors.NewMetricUnavailable("attribute has no role assigned").
			WithContext("attribute", attribute)
	}
	if role != models.RoleQuasiIdentifying {
		return nil, 0, errors.NewMetricUnavailable("metric only applies to quasi-identifying attributes").
			WithContext("attribute", attribute).
			WithContext("role", string(role))
	}
	h, ok := e.hierarchies[attribute]
	if !ok {
		return nil, 0, errors.NewMetricUnavailable("attribute has no hierarchy loaded").
			WithContext("attribute", attribute)
	}
	return h, e.levels[attribute], nil
}

// EquivalenceClassStats returns count, min, max and mean class size.
func (e *Engine) EquivalenceClassStats() (ClassStats, error) {
	idx, err := e.classes()
	if err != nil {
		return ClassStats{}, err
	}

	sizes := idx.Sizes()
	stats := ClassStats{Count: len(sizes), MinSize: sizes[0], MaxSize: sizes[0]}
	sum := 0
	for _, s := range sizes {
		if s < stats.MinSize {
			stats.MinSize = s
		}
		if s > stats.MaxSize {
			stats.MaxSize = s
		}
		sum += s
	}
	stats.AvgSize = float64(sum) / float64(len(sizes))
	return stats, nil
}

// Discernibility sums the squared class sizes: the number of records each
// record is indistinguishable from, totalled over the table. Larger is worse.
func (e *Engine) Discernibility() (float64, error) {
	idx, err := e.classes()
	if err != nil {
		return math.NaN(), err
	}

	total := 0.0
	for _, size := range idx.Sizes() {
		total += float64(size) * float64(size)
	}
	return total, nil
}

// AverageClassSize returns the mean equivalence-class size.
func (e *Engine) AverageClassSize() (float64, error) {
	stats, err := e.EquivalenceClassStats()
	if err != nil {
		return math.NaN(), err
	}
	return stats.AvgSize, nil
}

// Granularity measures, per record, the fraction of the attribute's domain
// collapsed into its generalized value, averaged over records: 0 when nothing
// was generalized, 1 when every record is fully suppressed.
func (e *Engine) Granularity(attribute string) (float64, error) {
	h, level, err := e.quasiIdentifier(attribute)
	if err != nil {
		return math.NaN(), err
	}
	if e.anonymized.NumRows() == 0 {
		return math.NaN(), errors.NewMetricUnavailable("all rows were suppressed").
			WithContext("attribute", attribute)
	}

	domain := h.DomainSize()
	if domain <= 1 {
		return 0, nil
	}

	col := e.anonymized.ColumnIndex(attribute)
	fractions := make([]float64, e.anonymized.NumRows())
	for r, row := range e.anonymized.Rows {
		collapsed := len(h.ReverseImage(row[col], level))
		fractions[r] = float64(collapsed-1) / float64(domain-1)
	}
	return stat.Mean(fractions, nil), nil
}

// GeneralizationIntensity is the realized generalization level of the
// attribute relative to its maximum possible level.
func (e *Engine) GeneralizationIntensity(attribute string) (float64, error) {
	h, level, err := e.quasiIdentifier(attribute)
	if err != nil {
		return math.NaN(), err
	}
	if h.MaxLevel() == 0 {
		return 0, nil
	}
	return float64(level) / float64(h.MaxLevel()), nil
}

// NonUniformEntropy measures information loss as the negative log2
// probability of recovering a record's original value by reverse-mapping its
// generalized value, averaged over records.
func (e *Engine) NonUniformEntropy(attribute string) (float64, error) {
	_, _, err := e.quasiIdentifier(attribute)
	if err != nil {
		return math.NaN(), err
	}
	if e.anonymized.NumRows() == 0 {
		return math.NaN(), errors.NewMetricUnavailable("all rows were suppressed").
			WithContext("attribute", attribute)
	}
	if err := e.aligned(); err != nil {
		return math.NaN(), err
	}

	origCol := e.original.ColumnIndex(attribute)
	genCol := e.anonymized.ColumnIndex(attribute)

	origCounts := make(map[string]int)
	genCounts := make(map[string]int)
	for r := range e.original.Rows {
		origCounts[e.original.Rows[r][origCol]]++
		genCounts[e.anonymized.Rows[r][genCol]]++
	}

	losses := make([]float64, len(e.original.Rows))
	for r := range e.original.Rows {
		p := float64(origCounts[e.original.Rows[r][origCol]]) / float64(genCounts[e.anonymized.Rows[r][genCol]])
		losses[r] = -math.Log2(p)
	}
	return stat.Mean(losses, nil), nil
}

// Ambiguity combines the reverse-image sizes of every quasi-identifier: per
// record, the fraction of the original attribute-domain product consistent
// with its generalized values, averaged over records.
func (e *Engine) Ambiguity() (float64, error) {
	if e.anonymized.NumRows() == 0 {
		return math.NaN(), errors.NewMetricUnavailable("all rows were suppressed")
	}
	if len(e.roles.QuasiIdentifying) == 0 {
		return math.NaN(), errors.NewMetricUnavailable("no quasi-identifying attributes")
	}

	type attrRef struct {
		col    int
		level  int
		h      *hierarchy.Hierarchy
		domain float64
	}
	refs := make([]attrRef, 0, len(e.roles.QuasiIdentifying))
	for _, qi := range e.roles.QuasiIdentifying {
		h, level, err := e.quasiIdentifier(qi)
		if err != nil {
			return math.NaN(), err
		}
		if h.DomainSize() == 0 {
			return math.NaN(), errors.NewMetricUnavailable("hierarchy has an empty domain").
				WithContext("attribute", qi)
		}
		refs = append(refs, attrRef{
			col:    e.anonymized.ColumnIndex(qi),
			level:  level,
			h:      h,
			domain: float64(h.DomainSize()),
		})
	}

	scores := make([]float64, e.anonymized.NumRows())
	for r, row := range e.anonymized.Rows {
		score := 1.0
		for _, ref := range refs {
			score *= float64(len(ref.h.ReverseImage(row[ref.col], ref.level))) / ref.domain
		}
		scores[r] = score
	}
	return stat.Mean(scores, nil), nil
}

// AttributeLevelSquaredError averages, over records, the squared difference
// between the original numeric value and the midpoint of its generalized
// range.
func (e *Engine) AttributeLevelSquaredError(attribute string) (float64, error) {
	h, level, err := e.quasiIdentifier(attribute)
	if err != nil {
		return math.NaN(), err
	}
	sqErrors, err := e.squaredErrors(attribute, h, level)
	if err != nil {
		return math.NaN(), err
	}
	return stat.Mean(sqErrors, nil), nil
}

// RecordLevelSquaredError averages, per record, the mean squared error across
// all numeric quasi-identifiers, then averages over records.
func (e *Engine) RecordLevelSquaredError() (float64, error) {
	perAttr, err := e.numericSquaredErrors()
	if err != nil {
		return math.NaN(), err
	}

	rows := e.anonymized.NumRows()
	records := make([]float64, rows)
	for r := 0; r < rows; r++ {
		sum := 0.0
		for _, sqErrors := range perAttr {
			sum += sqErrors[r]
		}
		records[r] = sum / float64(len(perAttr))
	}
	return stat.Mean(records, nil), nil
}

// SSESST normalizes the total squared error by the total squared deviation
// from the column means, yielding a scale-free loss in [0, 1] for global
// recoding.
func (e *Engine) SSESST() (float64, error) {
	perAttr, err := e.numericSquaredErrors()
	if err != nil {
		return math.NaN(), err
	}

	sse := 0.0
	sst := 0.0
	for attribute, sqErrors := range perAttr {
		col := e.original.ColumnIndex(attribute)
		values := make([]float64, len(e.original.Rows))
		for r := range e.original.Rows {
			values[r], _ = cast.ToFloat64E(e.original.Rows[r][col])
		}
		mean := stat.Mean(values, nil)
		for r, v := range values {
			sse += sqErrors[r]
			sst += (v - mean) * (v - mean)
		}
	}
	if sst == 0 {
		return math.NaN(), errors.NewMetricUnavailable("numeric quasi-identifiers have zero variance")
	}
	return sse / sst, nil
}

// numericSquaredErrors computes per-record squared errors for every numeric
// quasi-identifier.
func (e *Engine) numericSquaredErrors() (map[string][]float64, error) {
	if e.anonymized.NumRows() == 0 {
		return nil, errors.NewMetricUnavailable("all rows were suppressed")
	}

	perAttr := make(map[string][]float64)
	for _, qi := range e.roles.QuasiIdentifying {
		h, level, err := e.quasiIdentifier(qi)
		if err != nil {
			return nil, err
		}
		if !e.numericColumn(qi) {
			continue
		}
		sqErrors, err := e.squaredErrors(qi, h, level)
		if err != nil {
			continue
		}
		perAttr[qi] = sqErrors
	}

	if len(perAttr) == 0 {
		return nil, errors.NewMetricUnavailable("no numeric quasi-identifying attributes")
	}
	return perAttr, nil
}

func (e *Engine) squaredErrors(attribute string, h *hierarchy.Hierarchy, level int) ([]float64, error) {
	if e.anonymized.NumRows() == 0 {
		return nil, errors.NewMetricUnavailable("all rows were suppressed").
			WithContext("attribute", attribute)
	}
	if err := e.aligned(); err != nil {
		return nil, err
	}
	if !e.numericColumn(attribute) {
		return nil, errors.NewMetricUnavailable("attribute is not numeric").
			WithContext("attribute", attribute)
	}

	origCol := e.original.ColumnIndex(attribute)
	genCol := e.anonymized.ColumnIndex(attribute)

	midpoints := make(map[string]float64)
	sqErrors := make([]float64, e.anonymized.NumRows())
	for r := range e.anonymized.Rows {
		generalized := e.anonymized.Rows[r][genCol]

		mid, ok := midpoints[generalized]
		if !ok {
			var err error
			mid, err = reverseMidpoint(h, generalized, level)
			if err != nil {
				return nil, err
			}
			midpoints[generalized] = mid
		}

		original, err := cast.ToFloat64E(e.original.Rows[r][origCol])
		if err != nil {
			return nil, errors.NewMetricUnavailable("non-numeric cell in numeric attribute").
				WithContext("attribute", attribute).
				WithContext("value", e.original.Rows[r][origCol])
		}
		diff := original - mid
		sqErrors[r] = diff * diff
	}
	return sqErrors, nil
}

// reverseMidpoint is the midpoint of the numeric range the generalized value
// stands for: (min+max)/2 over the level 0 values in its reverse image.
func reverseMidpoint(h *hierarchy.Hierarchy, generalized string, level int) (float64, error) {
	originals := h.ReverseImage(generalized, level)
	if len(originals) == 0 {
		return 0, errors.NewMetricUnavailable(fmt.Sprintf("value %q has an empty reverse image", generalized))
	}

	min := math.Inf(1)
	max := math.Inf(-1)
	for _, v := range originals {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, errors.NewMetricUnavailable("non-numeric value in reverse image").
				WithContext("value", v)
		}
		min = math.Min(min, f)
		max = math.Max(max, f)
	}
	return (min + max) / 2, nil
}

// numericColumn reports whether every original cell of the column parses as a
// float.
func (e *Engine) numericColumn(attribute string) bool {
	col := e.original.ColumnIndex(attribute)
	if col < 0 || len(e.original.Rows) == 0 {
		return false
	}
	for _, row := range e.original.Rows {
		if _, err := cast.ToFloat64E(row[col]); err != nil {
			return false
		}
	}
	return true
}

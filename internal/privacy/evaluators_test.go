package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

func evaluatorTable(rows [][]string) *models.Table {
	tbl := models.NewTable([]string{"age", "disease"})
	for _, row := range rows {
		_ = tbl.AppendRow(row)
	}
	return tbl
}

func TestKAnonymityEvaluate(t *testing.T) {
	tbl := evaluatorTable([][]string{
		{"20-29", "flu"},
		{"20-29", "cold"},
		{"30-39", "flu"},
	})
	idx, err := Classes(tbl, []string{"age"})
	require.NoError(t, err)

	k2 := &KAnonymity{K: 2}
	satisfied, violating, err := k2.Evaluate(tbl, idx)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.Len(t, violating, 1)
	assert.Contains(t, violating, "30-39")

	k1 := &KAnonymity{K: 1}
	satisfied, violating, err = k1.Evaluate(tbl, idx)
	require.NoError(t, err)
	assert.True(t, satisfied)
	assert.Empty(t, violating)
}

func TestKAnonymityFeasible(t *testing.T) {
	tbl := evaluatorTable([][]string{{"20-29", "flu"}, {"20-29", "cold"}})

	assert.NoError(t, (&KAnonymity{K: 2}).Feasible(tbl))

	err := (&KAnonymity{K: 3}).Feasible(tbl)
	require.Error(t, err)
	assert.True(t, apperrors.IsPrivacyUnachievable(err))
}

func TestLDiversityDistinct(t *testing.T) {
	tbl := evaluatorTable([][]string{
		{"20-29", "flu"},
		{"20-29", "cold"},
		{"30-39", "flu"},
		{"30-39", "flu"},
	})
	idx, err := Classes(tbl, []string{"age"})
	require.NoError(t, err)

	l := &LDiversity{L: 2, Variant: models.DiversityDistinct, SensitiveAttributes: []string{"disease"}}
	satisfied, violating, err := l.Evaluate(tbl, idx)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.Contains(t, violating, "30-39")
	assert.NotContains(t, violating, "20-29")
}

func TestLDiversityEntropy(t *testing.T) {
	// Class "20-29": uniform over two values, entropy ln(2) meets l=2.
	// Class "30-39": skewed 3:1, entropy below ln(2).
	tbl := evaluatorTable([][]string{
		{"20-29", "flu"},
		{"20-29", "cold"},
		{"30-39", "flu"},
		{"30-39", "flu"},
		{"30-39", "flu"},
		{"30-39", "cold"},
	})
	idx, err := Classes(tbl, []string{"age"})
	require.NoError(t, err)

	l := &LDiversity{L: 2, Variant: models.DiversityEntropy, SensitiveAttributes: []string{"disease"}}
	satisfied, violating, err := l.Evaluate(tbl, idx)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.Contains(t, violating, "30-39")
	assert.NotContains(t, violating, "20-29")
}

func TestLDiversityFeasible(t *testing.T) {
	tbl := evaluatorTable([][]string{
		{"20-29", "flu"},
		{"30-39", "flu"},
	})

	l := &LDiversity{L: 2, Variant: models.DiversityDistinct, SensitiveAttributes: []string{"disease"}}
	err := l.Feasible(tbl)
	require.Error(t, err)
	assert.True(t, apperrors.IsPrivacyUnachievable(err))

	diverse := evaluatorTable([][]string{
		{"20-29", "flu"},
		{"30-39", "cold"},
	})
	assert.NoError(t, l.Feasible(diverse))
}

func TestTClosenessEvaluate(t *testing.T) {
	// Global disease distribution: flu 1/2, cold 1/2. The "30-39" class is
	// all flu, at distance 1/2 from the global distribution.
	tbl := evaluatorTable([][]string{
		{"20-29", "flu"},
		{"20-29", "cold"},
		{"20-29", "cold"},
		{"30-39", "flu"},
	})
	idx, err := Classes(tbl, []string{"age"})
	require.NoError(t, err)

	strict := &TCloseness{T: 0.2, SensitiveAttributes: []string{"disease"}}
	satisfied, violating, err := strict.Evaluate(tbl, idx)
	require.NoError(t, err)
	assert.False(t, satisfied)
	assert.Contains(t, violating, "30-39")

	loose := &TCloseness{T: 0.6, SensitiveAttributes: []string{"disease"}}
	satisfied, violating, err = loose.Evaluate(tbl, idx)
	require.NoError(t, err)
	assert.True(t, satisfied)
	assert.Empty(t, violating)
}

func TestTClosenessDistance(t *testing.T) {
	tbl := evaluatorTable([][]string{
		{"20-29", "flu"},
		{"20-29", "cold"},
		{"30-39", "flu"},
		{"30-39", "cold"},
	})
	idx, err := Classes(tbl, []string{"age"})
	require.NoError(t, err)

	tc := &TCloseness{T: 0.1, SensitiveAttributes: []string{"disease"}}
	distances, err := tc.Distance(tbl, idx, "disease")
	require.NoError(t, err)
	// Both classes mirror the global distribution exactly.
	assert.InDelta(t, 0.0, distances["20-29"], 1e-12)
	assert.InDelta(t, 0.0, distances["30-39"], 1e-12)
}

func TestVariationalDistance(t *testing.T) {
	p := map[string]float64{"a": 1.0}
	q := map[string]float64{"a": 0.5, "b": 0.5}
	assert.InDelta(t, 0.5, variationalDistance(p, q), 1e-12)
	assert.InDelta(t, 0.5, variationalDistance(q, p), 1e-12)
	assert.InDelta(t, 0.0, variationalDistance(q, q), 1e-12)
}

func TestBuildEvaluatorsOrder(t *testing.T) {
	k, l, tval := 3, 2, 0.2
	evaluators := BuildEvaluators(models.Constraints{K: &k, L: &l, T: &tval}, []string{"disease"})
	require.Len(t, evaluators, 3)
	assert.Equal(t, "k-anonymity", evaluators[0].Name())
	assert.Equal(t, "l-diversity", evaluators[1].Name())
	assert.Equal(t, "t-closeness", evaluators[2].Name())
}

package anonymizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privplane/anonymizer/internal/hierarchy"
	"github.com/privplane/anonymizer/internal/privacy"
	apperrors "github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

func loadHierarchy(t *testing.T, attribute, content string) *hierarchy.Hierarchy {
	t.Helper()
	path := filepath.Join(t.TempDir(), attribute+".csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	h, err := hierarchy.NewStore(logrus.New()).Load(attribute, path)
	require.NoError(t, err)
	return h
}

const ageHierarchyCSV = `21,20-29,*
25,20-29,*
33,30-39,*
38,30-39,*
43,40-49,*
47,40-49,*
`

func ageTable(t *testing.T) *models.Table {
	t.Helper()
	tbl := models.NewTable([]string{"age", "disease"})
	rows := [][]string{
		{"21", "flu"},
		{"25", "cold"},
		{"33", "flu"},
		{"38", "asthma"},
		{"43", "cold"},
		{"47", "flu"},
	}
	for _, row := range rows {
		require.NoError(t, tbl.AppendRow(row))
	}
	return tbl
}

func TestDriverGroupsByDecade(t *testing.T) {
	tbl := ageTable(t)
	h := loadHierarchy(t, "age", ageHierarchyCSV)

	driver := NewDriver(logrus.New(), nil)
	outcome, err := driver.Run(context.Background(), RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators:       []privacy.Evaluator{&privacy.KAnonymity{K: 2}},
		SuppressionLimit: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, StateSatisfied, outcome.State)
	assert.Equal(t, 1, outcome.Levels["age"])
	assert.Equal(t, 0, outcome.Suppressed)
	assert.Equal(t, 1, outcome.Steps)

	idx, err := privacy.Classes(outcome.Table, []string{"age"})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.NumClasses())
	for _, size := range idx.Sizes() {
		assert.GreaterOrEqual(t, size, 2)
	}
}

func TestDriverKExceedsRows(t *testing.T) {
	tbl := ageTable(t)
	h := loadHierarchy(t, "age", ageHierarchyCSV)

	driver := NewDriver(logrus.New(), nil)
	outcome, err := driver.Run(context.Background(), RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators:       []privacy.Evaluator{&privacy.KAnonymity{K: 10}},
		SuppressionLimit: 0,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsPrivacyUnachievable(err))
	require.NotNil(t, outcome)
	assert.Equal(t, StateUnachievable, outcome.State)
}

func TestDriverSingleSensitiveValueUnachievable(t *testing.T) {
	tbl := models.NewTable([]string{"age", "disease"})
	for _, age := range []string{"21", "25", "33", "38"} {
		require.NoError(t, tbl.AppendRow([]string{age, "flu"}))
	}
	h := loadHierarchy(t, "age", ageHierarchyCSV)

	driver := NewDriver(logrus.New(), nil)
	_, err := driver.Run(context.Background(), RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators: []privacy.Evaluator{
			&privacy.KAnonymity{K: 2},
			&privacy.LDiversity{L: 2, Variant: models.DiversityDistinct, SensitiveAttributes: []string{"disease"}},
		},
		SuppressionLimit: 100,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsPrivacyUnachievable(err))
}

func TestDriverIdempotentOnSatisfyingInput(t *testing.T) {
	tbl := ageTable(t)
	h := loadHierarchy(t, "age", ageHierarchyCSV)
	driver := NewDriver(logrus.New(), nil)

	input := RunInput{
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators:       []privacy.Evaluator{&privacy.KAnonymity{K: 2}},
		SuppressionLimit: 0,
	}

	input.Table = tbl
	first, err := driver.Run(context.Background(), input)
	require.NoError(t, err)

	input.Table = first.Table
	second, err := driver.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Steps)
	assert.Equal(t, 0, second.Suppressed)
	assert.Equal(t, first.Table.Rows, second.Table.Rows)
}

func TestDriverTieBreaksByDeclarationOrder(t *testing.T) {
	tbl := models.NewTable([]string{"age", "zip"})
	require.NoError(t, tbl.AppendRow([]string{"21", "10001"}))
	require.NoError(t, tbl.AppendRow([]string{"25", "10002"}))

	ageH := loadHierarchy(t, "age", "21,20-29,*\n25,20-29,*\n")
	zipH := loadHierarchy(t, "zip", "10001,100**,*\n10002,100**,*\n")

	driver := NewDriver(logrus.New(), nil)
	outcome, err := driver.Run(context.Background(), RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age", "zip"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": ageH, "zip": zipH},
		Evaluators:       []privacy.Evaluator{&privacy.KAnonymity{K: 2}},
		SuppressionLimit: 0,
	})
	require.NoError(t, err)

	// Escalating either attribute alone leaves two singleton classes, so the
	// first round must pick "age" by declaration order and the second round
	// merges the classes via "zip".
	assert.Equal(t, 1, outcome.Levels["age"])
	assert.Equal(t, 1, outcome.Levels["zip"])
	assert.Equal(t, 2, outcome.Steps)
	assert.Equal(t, 0, outcome.Suppressed)
}

// requireEmpty fails every table that still has more rows than its bound,
// blaming all classes. It exercises the suppression path, which real models
// cannot reach while hierarchies terminate in full suppression.
type requireEmpty struct {
	maxRows int
}

func (r *requireEmpty) Name() string                     { return "require-empty" }
func (r *requireEmpty) Feasible(tbl *models.Table) error { return nil }
func (r *requireEmpty) Evaluate(tbl *models.Table, idx *privacy.ClassIndex) (bool, map[string]struct{}, error) {
	if tbl.NumRows() <= r.maxRows {
		return true, nil, nil
	}
	violating := make(map[string]struct{}, len(idx.Keys))
	for _, key := range idx.Keys {
		violating[key] = struct{}{}
	}
	return false, violating, nil
}

func TestDriverSuppressesWithinBudget(t *testing.T) {
	tbl := ageTable(t)
	h := loadHierarchy(t, "age", ageHierarchyCSV)

	driver := NewDriver(logrus.New(), nil)
	outcome, err := driver.Run(context.Background(), RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators:       []privacy.Evaluator{&requireEmpty{maxRows: 0}},
		SuppressionLimit: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, StateSatisfied, outcome.State)
	assert.Equal(t, 6, outcome.Suppressed)
	assert.Equal(t, 0, outcome.Table.NumRows())
	// Both levels were exhausted before suppression began.
	assert.Equal(t, 2, outcome.Levels["age"])
}

func TestDriverSuppressionBudgetExhausted(t *testing.T) {
	tbl := ageTable(t)
	h := loadHierarchy(t, "age", ageHierarchyCSV)

	driver := NewDriver(logrus.New(), nil)
	outcome, err := driver.Run(context.Background(), RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators:       []privacy.Evaluator{&requireEmpty{maxRows: 0}},
		SuppressionLimit: 50,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsPrivacyUnachievable(err))
	require.NotNil(t, outcome)
	assert.Equal(t, StateUnachievable, outcome.State)
	assert.LessOrEqual(t, outcome.Suppressed, 3)
}

func TestDriverCancellation(t *testing.T) {
	tbl := ageTable(t)
	h := loadHierarchy(t, "age", ageHierarchyCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver := NewDriver(logrus.New(), nil)
	outcome, err := driver.Run(ctx, RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators:       []privacy.Evaluator{&privacy.KAnonymity{K: 2}},
		SuppressionLimit: 0,
	})
	require.Error(t, err)
	assert.Nil(t, outcome)
}

func TestDriverDoesNotMutateInput(t *testing.T) {
	tbl := ageTable(t)
	snapshot := tbl.Clone()
	h := loadHierarchy(t, "age", ageHierarchyCSV)

	driver := NewDriver(logrus.New(), nil)
	_, err := driver.Run(context.Background(), RunInput{
		Table:            tbl,
		QuasiIdentifiers: []string{"age"},
		Hierarchies:      map[string]*hierarchy.Hierarchy{"age": h},
		Evaluators:       []privacy.Evaluator{&privacy.KAnonymity{K: 2}},
		SuppressionLimit: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, snapshot.Rows, tbl.Rows)
}

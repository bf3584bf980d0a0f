package hierarchy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/privplane/anonymizer/pkg/errors"
)

func writeHierarchyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hierarchy.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const ageHierarchy = `21,20-29,*
25,20-29,*
33,30-39,*
38,30-39,*
47,40-49,*
`

func TestLoadValidHierarchy(t *testing.T) {
	store := NewStore(logrus.New())
	h, err := store.Load("age", writeHierarchyFile(t, ageHierarchy))
	require.NoError(t, err)

	assert.Equal(t, "age", h.Attribute())
	assert.Equal(t, 2, h.MaxLevel())
	assert.Equal(t, 5, h.DomainSize())
	assert.True(t, h.Covers("33"))
	assert.False(t, h.Covers("99"))
}

func TestGeneralize(t *testing.T) {
	store := NewStore(nil)
	h, err := store.Load("age", writeHierarchyFile(t, ageHierarchy))
	require.NoError(t, err)

	tests := []struct {
		value    string
		level    int
		expected string
	}{
		{"21", 0, "21"},
		{"21", 1, "20-29"},
		{"21", 2, "*"},
		{"47", 1, "40-49"},
	}
	for _, tt := range tests {
		got, err := h.Generalize(tt.value, tt.level)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}

	_, err = h.Generalize("99", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrHierarchyCoverage)

	_, err = h.Generalize("21", 3)
	require.Error(t, err)
}

func TestReverseImage(t *testing.T) {
	store := NewStore(nil)
	h, err := store.Load("age", writeHierarchyFile(t, ageHierarchy))
	require.NoError(t, err)

	assert.Equal(t, []string{"21", "25"}, h.ReverseImage("20-29", 1))
	assert.Equal(t, []string{"47"}, h.ReverseImage("40-49", 1))
	assert.Equal(t, []string{"21", "25", "33", "38", "47"}, h.ReverseImage("*", 2))
	assert.Empty(t, h.ReverseImage("50-59", 1))
}

func TestLevelOfValue(t *testing.T) {
	store := NewStore(nil)
	h, err := store.Load("age", writeHierarchyFile(t, ageHierarchy))
	require.NoError(t, err)

	assert.Equal(t, 0, h.LevelOfValue("25"))
	assert.Equal(t, 1, h.LevelOfValue("30-39"))
	assert.Equal(t, 2, h.LevelOfValue("*"))
	assert.Equal(t, -1, h.LevelOfValue("unknown"))
}

func TestMissingValues(t *testing.T) {
	store := NewStore(nil)
	h, err := store.Load("age", writeHierarchyFile(t, ageHierarchy))
	require.NoError(t, err)

	values := map[string]struct{}{"21": {}, "99": {}, "50": {}}
	assert.Equal(t, []string{"50", "99"}, h.MissingValues(values))

	covered := map[string]struct{}{"21": {}, "47": {}}
	assert.Empty(t, h.MissingValues(covered))
}

func TestLoadCachesByAttributeAndPath(t *testing.T) {
	store := NewStore(nil)
	path := writeHierarchyFile(t, ageHierarchy)

	first, err := store.Load("age", path)
	require.NoError(t, err)
	second, err := store.Load("age", path)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Load("age", filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeHierarchyNotFound, appErr.Code)
}

func TestLoadInconsistentLevelCount(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Load("age", writeHierarchyFile(t, "21,20-29,*\n25,20-29\n"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeHierarchyMalformed, appErr.Code)
}

func TestLoadMissingSuppressionSymbol(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Load("age", writeHierarchyFile(t, "21,20-29,adult\n"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeHierarchyMalformed, appErr.Code)
}

func TestLoadBranchingHierarchy(t *testing.T) {
	store := NewStore(nil)
	// "25" maps to two different parents at level 1.
	_, err := store.Load("age", writeHierarchyFile(t, "21,20-29,*\n25,20-29,*\n25,20-24,*\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrHierarchyBranching)
}

func TestLoadCrossRowBranching(t *testing.T) {
	store := NewStore(nil)
	// Same level 1 value generalizes to different level 2 values.
	content := "21,young,0-49,*\n25,young,0-29,*\n"
	_, err := store.Load("age", writeHierarchyFile(t, content))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrHierarchyBranching)
}

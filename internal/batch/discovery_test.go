package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	return path
}

func TestDiscoverEmissionFiles_EmptyArgs(t *testing.T) {
	files, err := DiscoverEmissionFiles(nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverEmissionFiles_ExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a.json"))
	notes := touch(t, filepath.Join(dir, "notes.txt"))

	// explicit files skip the include filter
	files, err := DiscoverEmissionFiles([]string{notes, a, a}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{a, notes}, files)
}

func TestDiscoverEmissionFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	j := touch(t, filepath.Join(dir, "x.json"))
	c := touch(t, filepath.Join(dir, "y.csv"))
	y := touch(t, filepath.Join(dir, "z.yml"))
	touch(t, filepath.Join(dir, "readme.md"))
	nested := touch(t, filepath.Join(dir, "sub", "deep.json"))

	files, err := DiscoverEmissionFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{j, c, y}, files)

	files, err = DiscoverEmissionFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{nested, j, c, y}, files)
}

func TestDiscoverEmissionFiles_IncludeExclude(t *testing.T) {
	dir := t.TempDir()
	keep := touch(t, filepath.Join(dir, "keep.json"))
	touch(t, filepath.Join(dir, "skip.json"))
	touch(t, filepath.Join(dir, "other.csv"))

	files, err := DiscoverEmissionFiles([]string{dir}, false, []string{"*.json"}, []string{"skip*"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestDiscoverEmissionFiles_Missing(t *testing.T) {
	files, err := DiscoverEmissionFiles([]string{"/nonexistent/directory"}, false, nil, nil)
	require.Error(t, err)
	assert.Nil(t, files)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestMatchesAnyPattern(t *testing.T) {
	testCases := []struct {
		filename string
		patterns []string
		expected bool
	}{
		{"m.json", []string{"*.json"}, true},
		{"m.JSON", []string{"*.json"}, false},
		{"dir/m.csv", []string{"*.json", "*.csv"}, true},
		{"m.csv", nil, false},
		{"test.yaml", []string{"test.*"}, true},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, matchesAnyPattern(tc.filename, tc.patterns), "filename=%s", tc.filename)
	}
}

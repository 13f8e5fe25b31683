package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/MeKo-Tech/goctc/internal/emission"
	"github.com/stretchr/testify/require"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)

	// Walk up the directory tree to find go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// WriteEmissionFile writes rows to dir/name using the codec picked from the
// extension and returns the full path.
func WriteEmissionFile(t *testing.T, dir, name string, rows [][]float64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	format, err := emission.FormatFromPath(path)
	require.NoError(t, err)

	f, err := os.Create(path) //nolint:gosec // G304: test file in a temp dir
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.NoError(t, emission.Encode(f, rows, format, -1))
	return path
}

package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJobFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJobFile_JSON(t *testing.T) {
	path := writeJobFile(t, "jobs.json", `{"jobs": [
		{"name": "one", "label": "ab", "file": "one.csv"},
		{"mode": "decode", "emissions": [[0.5, 0.5]], "logits": true},
		{"label": "c", "file": "/abs/two.json"}
	]}`)

	jobs, err := LoadJobFile(path)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "one.csv"), jobs[0].File)
	assert.Equal(t, "one", jobs[0].Source())
	assert.Equal(t, ModeDecode, jobs[1].Mode)
	assert.True(t, jobs[1].Logits)
	assert.Equal(t, "inline", jobs[1].Source())
	assert.Equal(t, "/abs/two.json", jobs[2].File)
	assert.Equal(t, "/abs/two.json", jobs[2].Source())
}

func TestLoadJobFile_YAML(t *testing.T) {
	path := writeJobFile(t, "jobs.yml", `
jobs:
  - label: a
    emissions:
      - [0.6, 0.4]
`)

	jobs, err := LoadJobFile(path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Label)
	assert.Equal(t, [][]float64{{0.6, 0.4}}, jobs[0].Emissions)
}

func TestLoadJobFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{name: "empty", file: "jobs.json", content: `{"jobs": []}`, want: "no jobs"},
		{name: "unknown field", file: "jobs.json", content: `{"jobs": [{"lable": "a"}]}`, want: "failed to parse"},
		{name: "bad yaml", file: "jobs.yaml", content: "jobs: [", want: "failed to parse"},
		{name: "bad mode", file: "jobs.json", content: `{"jobs": [{"mode": "train"}]}`, want: `unknown job mode "train"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadJobFile(writeJobFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadJobFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read job file")
}

func TestJob_Matrix(t *testing.T) {
	m, err := Job{Emissions: [][]float64{{0, 0}}, Logits: true}.Matrix()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.At(0, 0), 1e-12)

	_, err = Job{File: "x.json", Emissions: [][]float64{{1}}}.Matrix()
	assert.ErrorContains(t, err, "both file and inline")
}

func TestDecodeJobs(t *testing.T) {
	jobs := DecodeJobs([]string{"a.json", "b.csv"}, true)
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, ModeDecode, j.Mode)
		assert.True(t, j.Logits)
	}
	assert.Equal(t, "b.csv", jobs[1].Source())
}

package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/goctc/internal/emission"
	"gopkg.in/yaml.v3"
)

// Mode selects what a job computes.
type Mode string

// Job modes. The zero value scores.
const (
	ModeScore  Mode = "score"
	ModeDecode Mode = "decode"
)

// Job is one entry of a job file. Emissions come either inline or from
// File; a relative File is resolved against the job file's directory.
type Job struct {
	Name      string      `json:"name,omitempty" yaml:"name,omitempty"`
	Mode      Mode        `json:"mode,omitempty" yaml:"mode,omitempty"`
	Label     string      `json:"label" yaml:"label"`
	File      string      `json:"file,omitempty" yaml:"file,omitempty"`
	Emissions [][]float64 `json:"emissions,omitempty" yaml:"emissions,omitempty"`
	Logits    bool        `json:"logits,omitempty" yaml:"logits,omitempty"`
}

// JobFile is the document read by LoadJobFile.
type JobFile struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Source names the job for reports.
func (j Job) Source() string {
	switch {
	case j.Name != "":
		return j.Name
	case j.File != "":
		return j.File
	default:
		return "inline"
	}
}

// Matrix loads the job's emissions.
func (j Job) Matrix() (*emission.Matrix, error) {
	if j.File != "" {
		if len(j.Emissions) > 0 {
			return nil, errors.New("job has both file and inline emissions")
		}
		return emission.LoadFile(j.File, j.Logits)
	}
	return emission.Document{Emissions: j.Emissions, Logits: j.Logits}.Matrix()
}

func (j Job) validate() error {
	switch j.Mode {
	case "", ModeScore, ModeDecode:
		return nil
	}
	return fmt.Errorf("unknown job mode %q", j.Mode)
}

// LoadJobFile reads a JSON or YAML job file, chosen by extension.
func LoadJobFile(path string) ([]Job, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: job file path comes from the CLI
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var jf JobFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &jf)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&jf)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	if len(jf.Jobs) == 0 {
		return nil, fmt.Errorf("job file %s contains no jobs", path)
	}

	base := filepath.Dir(path)
	for i := range jf.Jobs {
		if err := jf.Jobs[i].validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		if f := jf.Jobs[i].File; f != "" && !filepath.IsAbs(f) {
			jf.Jobs[i].File = filepath.Join(base, f)
		}
	}
	return jf.Jobs, nil
}

// DecodeJobs builds one decode job per emission file.
func DecodeJobs(files []string, logits bool) []Job {
	jobs := make([]Job, len(files))
	for i, f := range files {
		jobs[i] = Job{Mode: ModeDecode, File: f, Logits: logits}
	}
	return jobs
}

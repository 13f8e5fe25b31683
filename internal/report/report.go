// Package report renders scoring and decoding results as text, JSON, CSV or
// YAML for the CLI, the batch runner and the HTTP service.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/goctc/internal/ctc"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// Float is a float64 that survives JSON even when it is not finite. NaN and
// the infinities are written as the strings "NaN", "+Inf" and "-Inf".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", s, err)
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Score is the rendered form of one scored or decoded input. Probability is
// nil for decode-only results.
type Score struct {
	Source            string    `json:"source,omitempty" yaml:"source,omitempty"`
	Label             string    `json:"label,omitempty" yaml:"label,omitempty"`
	Probability       *Float    `json:"probability,omitempty" yaml:"probability,omitempty"`
	NegLogProbability *Float    `json:"neg_log_probability,omitempty" yaml:"neg_log_probability,omitempty"`
	BestPath          string    `json:"best_path" yaml:"best_path"`
	TimeSteps         int       `json:"time_steps" yaml:"time_steps"`
	Gradient          [][]Float `json:"gradient,omitempty" yaml:"gradient,omitempty"`
	DurationMs        float64   `json:"duration_ms" yaml:"duration_ms"`
	Error             string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// FromResult converts a core result. The gradient is copied only when
// withGradient is set.
func FromResult(res *ctc.Result, withGradient bool) Score {
	p := Float(res.Probability)
	nll := Float(-math.Log(res.Probability))
	s := Score{
		Label:             res.Label,
		Probability:       &p,
		NegLogProbability: &nll,
		BestPath:          res.BestPath,
	}
	if res.Gradient != nil {
		s.TimeSteps, _ = res.Gradient.Dims()
		if withGradient {
			s.Gradient = Rows(res.Gradient)
		}
	}
	return s
}

// Probability builds a score carrying only a label probability.
func Probability(label string, p float64, steps int) Score {
	pf := Float(p)
	nll := Float(-math.Log(p))
	return Score{Label: label, Probability: &pf, NegLogProbability: &nll, TimeSteps: steps}
}

// Decoded builds a decode-only score.
func Decoded(bestPath string, steps int) Score {
	return Score{BestPath: bestPath, TimeSteps: steps}
}

// Rows copies a dense matrix into a row slice.
func Rows(m *mat.Dense) [][]Float {
	r, _ := m.Dims()
	out := make([][]Float, r)
	for i := range r {
		row := m.RawRowView(i)
		out[i] = make([]Float, len(row))
		for j, v := range row {
			out[i][j] = Float(v)
		}
	}
	return out
}

// Write renders scores in the given format. precision is the number of
// significant digits for text and CSV; -1 means the shortest exact form.
func Write(w io.Writer, scores []Score, format string, precision int) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(scores) == 1 {
			return enc.Encode(scores[0])
		}
		return enc.Encode(scores)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		if len(scores) == 1 {
			return enc.Encode(scores[0])
		}
		return enc.Encode(scores)
	case FormatCSV:
		return writeCSV(w, scores, precision)
	case FormatText, "":
		return writeText(w, scores, precision)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'g', precision, 64)
}

func optional(f *Float, precision int) string {
	if f == nil {
		return ""
	}
	return formatFloat(float64(*f), precision)
}

// writeCSV writes one summary row per score. Gradients are not part of the
// CSV layout.
func writeCSV(w io.Writer, scores []Score, precision int) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"source", "label", "probability", "neg_log_probability", "best_path", "time_steps", "error",
	}); err != nil {
		return err
	}
	for _, s := range scores {
		if err := writer.Write([]string{
			s.Source,
			s.Label,
			optional(s.Probability, precision),
			optional(s.NegLogProbability, precision),
			s.BestPath,
			strconv.Itoa(s.TimeSteps),
			s.Error,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeText(w io.Writer, scores []Score, precision int) error {
	var b strings.Builder
	for i, s := range scores {
		if i > 0 {
			b.WriteString("\n")
		}
		if s.Source != "" {
			fmt.Fprintf(&b, "# %s\n", s.Source)
		}
		if s.Error != "" {
			fmt.Fprintf(&b, "error: %s\n", s.Error)
			continue
		}
		if s.Probability != nil {
			fmt.Fprintf(&b, "label: %q\n", s.Label)
			fmt.Fprintf(&b, "probability: %s\n", optional(s.Probability, precision))
			fmt.Fprintf(&b, "neg_log_probability: %s\n", optional(s.NegLogProbability, precision))
		}
		fmt.Fprintf(&b, "best_path: %q\n", s.BestPath)
		fmt.Fprintf(&b, "time_steps: %d\n", s.TimeSteps)
		if len(s.Gradient) > 0 {
			b.WriteString("gradient:\n")
			for t, row := range s.Gradient {
				cells := make([]string, len(row))
				for k, v := range row {
					cells[k] = formatFloat(float64(v), precision)
				}
				fmt.Fprintf(&b, "  %d: %s\n", t, strings.Join(cells, " "))
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

func sampleResult() *ctc.Result {
	return &ctc.Result{
		Label:       "ab",
		Probability: 0.25,
		Gradient:    mat.NewDense(2, 3, []float64{-1, 0, math.NaN(), 0, math.Inf(-1), -2}),
		BestPath:    "ab",
	}
}

func TestFloat_JSON(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0.5, want: "0.5"},
		{in: -3, want: "-3"},
		{in: math.NaN(), want: `"NaN"`},
		{in: math.Inf(1), want: `"+Inf"`},
		{in: math.Inf(-1), want: `"-Inf"`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(Float(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(data))

		var back Float
		require.NoError(t, json.Unmarshal(data, &back))
		if math.IsNaN(tt.in) {
			assert.True(t, math.IsNaN(float64(back)))
		} else {
			assert.Equal(t, tt.in, float64(back))
		}
	}

	var bad Float
	assert.Error(t, json.Unmarshal([]byte(`"many"`), &bad))
}

func TestFromResult(t *testing.T) {
	s := FromResult(sampleResult(), false)
	assert.Equal(t, "ab", s.Label)
	require.NotNil(t, s.Probability)
	assert.Equal(t, 0.25, float64(*s.Probability))
	assert.InDelta(t, math.Log(4), float64(*s.NegLogProbability), 1e-12)
	assert.Equal(t, 2, s.TimeSteps)
	assert.Nil(t, s.Gradient)

	s = FromResult(sampleResult(), true)
	require.Len(t, s.Gradient, 2)
	assert.Equal(t, Float(-2), s.Gradient[1][2])
}

func TestProbability_Zero(t *testing.T) {
	s := Probability("a", 0, 3)
	assert.True(t, math.IsInf(float64(*s.NegLogProbability), 1))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Score{s}, FormatJSON, -1))
	assert.Contains(t, buf.String(), `"neg_log_probability": "+Inf"`)
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Score{FromResult(sampleResult(), true)}, FormatJSON, -1))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ab", got["label"])
	assert.Equal(t, 0.25, got["probability"])
	grad := got["gradient"].([]any)
	assert.Equal(t, "NaN", grad[0].([]any)[2])

	buf.Reset()
	require.NoError(t, Write(&buf, []Score{Decoded("x", 1), Decoded("y", 2)}, FormatJSON, -1))
	var list []Score
	require.NoError(t, json.Unmarshal(buf.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Nil(t, list[0].Probability)
	assert.Equal(t, "y", list[1].BestPath)
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Score{FromResult(sampleResult(), false)}, FormatYAML, -1))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ab", got["best_path"])
	assert.Equal(t, 0.25, got["probability"])
}

func TestWrite_CSV(t *testing.T) {
	scores := []Score{
		{Source: "one.json", Label: "ab", BestPath: "ab", TimeSteps: 2},
		{Source: "two.json", Error: "infeasible alignment"},
	}
	p := Float(0.125)
	scores[0].Probability = &p

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, scores, FormatCSV, 3))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "source,label,probability,neg_log_probability,best_path,time_steps,error", lines[0])
	assert.Equal(t, "one.json,ab,0.125,,ab,2,", lines[1])
	assert.Equal(t, "two.json,,,,,0,infeasible alignment", lines[2])
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	s := FromResult(sampleResult(), true)
	s.Source = "in.json"
	require.NoError(t, Write(&buf, []Score{s, {Source: "bad.json", Error: "boom"}}, FormatText, 4))

	out := buf.String()
	assert.Contains(t, out, "# in.json\n")
	assert.Contains(t, out, "label: \"ab\"\n")
	assert.Contains(t, out, "probability: 0.25\n")
	assert.Contains(t, out, "gradient:\n  0: -1 0 NaN\n  1: 0 -Inf -2\n")
	assert.Contains(t, out, "# bad.json\nerror: boom\n")
}

func TestWrite_DecodedText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Score{Decoded("cat", 9)}, "", -1))
	assert.Equal(t, "best_path: \"cat\"\ntime_steps: 9\n", buf.String())
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, nil, "xml", -1))
}

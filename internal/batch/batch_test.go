package batch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseCaseRows(t *testing.T) [][]float64 {
	t.Helper()
	return testutil.Rows(t, map[rune]float64{'0': 0.6, 'a': 0.4})
}

func TestRun_OrderedResults(t *testing.T) {
	labels := []string{"a", "ab", "abc", "b", "cab", "", "zz", "hello"}
	jobs := make([]Job, len(labels))
	want := make([]float64, len(labels))
	for i, label := range labels {
		em := testutil.RandomMatrix(12, uint64(i+7))
		jobs[i] = Job{Name: fmt.Sprintf("job-%d", i), Label: label, Emissions: em.Rows()}
		p, err := ctc.Score(nil, label, em, ctc.DefaultConfig())
		require.NoError(t, err)
		want[i] = p
	}

	res, err := Run(context.Background(), jobs, Config{Workers: 3, CTC: ctc.DefaultConfig()})
	require.NoError(t, err)
	require.Len(t, res.Scores, len(jobs))
	assert.Equal(t, 3, res.Workers)
	assert.Zero(t, res.Failed)

	for i, s := range res.Scores {
		assert.Equal(t, fmt.Sprintf("job-%d", i), s.Source)
		assert.Equal(t, labels[i], s.Label)
		require.NotNil(t, s.Probability)
		assert.Equal(t, want[i], float64(*s.Probability), "job %d", i)
		assert.Nil(t, s.Gradient)
	}
}

func TestRun_WithGradientAndDecode(t *testing.T) {
	jobs := []Job{
		{Label: "a", Emissions: baseCaseRows(t)},
		{Mode: ModeDecode, Emissions: testutil.PeakedPath(t, "aa0bb", 0.9).Rows()},
	}

	res, err := Run(context.Background(), jobs, Config{Workers: 2, WithGradient: true, CTC: ctc.DefaultConfig()})
	require.NoError(t, err)

	first := res.Scores[0]
	assert.InDelta(t, 0.4, float64(*first.Probability), 1e-12)
	require.Len(t, first.Gradient, 1)
	assert.InDelta(t, -2.5, float64(first.Gradient[0][0]), 1e-12)
	assert.Equal(t, "inline", first.Source)

	second := res.Scores[1]
	assert.Nil(t, second.Probability)
	assert.Equal(t, "ab", second.BestPath)
	assert.Equal(t, 5, second.TimeSteps)
}

func TestRun_ContinueOnError(t *testing.T) {
	oneA := map[rune]float64{'a': 1}
	jobs := []Job{
		{Name: "ok", Label: "a", Emissions: baseCaseRows(t)},
		{Name: "infeasible", Label: "aa", Emissions: testutil.Rows(t, oneA, oneA)},
		{Name: "missing", File: "/nonexistent/emissions.json"},
	}

	res, err := Run(context.Background(), jobs, Config{Workers: 2, ContinueOnError: true, CTC: ctc.DefaultConfig()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Empty(t, res.Scores[0].Error)
	assert.Contains(t, res.Scores[1].Error, "infeasible")
	assert.Equal(t, "infeasible", res.Scores[1].Source)
	assert.NotEmpty(t, res.Scores[2].Error)
}

func TestRun_FailFast(t *testing.T) {
	oneA := map[rune]float64{'a': 1}
	jobs := []Job{
		{Name: "ok", Label: "a", Emissions: baseCaseRows(t)},
		{Name: "bad", Label: "aa", Emissions: testutil.Rows(t, oneA, oneA)},
	}

	res, err := Run(context.Background(), jobs, Config{Workers: 1, CTC: ctc.DefaultConfig()})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ctc.ErrInfeasibleAlignment)
	assert.Contains(t, err.Error(), "job 1 (bad)")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := make([]Job, 50)
	for i := range jobs {
		jobs[i] = Job{Label: "a", Emissions: baseCaseRows(t)}
	}
	_, err := Run(ctx, jobs, Config{Workers: 2, CTC: ctc.DefaultConfig()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NoJobs(t *testing.T) {
	_, err := Run(context.Background(), nil, Config{})
	assert.Error(t, err)
}

type recordingProgress struct {
	mu       sync.Mutex
	started  int
	progress []int
	errors   []int
	complete bool
}

func (r *recordingProgress) OnStart(total int) { r.started = total }
func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}
func (r *recordingProgress) OnComplete()                { r.complete = true }
func (r *recordingProgress) OnError(index int, _ error) { r.errors = append(r.errors, index) }

func TestRun_Progress(t *testing.T) {
	jobs := []Job{
		{Label: "a", Emissions: baseCaseRows(t)},
		{Label: "a!", Emissions: baseCaseRows(t)},
		{Label: "", Emissions: baseCaseRows(t)},
	}
	rec := &recordingProgress{}

	_, err := Run(context.Background(), jobs, Config{Workers: 1, ContinueOnError: true, CTC: ctc.DefaultConfig(), Progress: rec})
	require.NoError(t, err)
	assert.Equal(t, 3, rec.started)
	assert.Equal(t, []int{1, 2, 3}, rec.progress)
	assert.Equal(t, []int{1}, rec.errors)
	assert.True(t, rec.complete)
}

func TestRun_JobFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteEmissionFile(t, dir, "base.csv", baseCaseRows(t))
	jobPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte("jobs:\n  - name: base\n    label: a\n    file: base.csv\n"), 0o600))

	jobs, err := LoadJobFile(jobPath)
	require.NoError(t, err)

	res, err := Run(context.Background(), jobs, Config{Workers: 1, CTC: ctc.DefaultConfig()})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.Write(&buf, "csv", 3))
	assert.Equal(t, "source,label,probability,neg_log_probability,best_path,time_steps,error\nbase,a,0.4,0.916,,1,\n", buf.String())

	buf.Reset()
	res.PrintStats(&buf)
	assert.Contains(t, buf.String(), "Total jobs: 1")
	assert.Contains(t, buf.String(), "Failed: 0")
}

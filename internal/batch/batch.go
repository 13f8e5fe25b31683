// Package batch scores many independent jobs with a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/report"
)

// Config holds batch settings.
type Config struct {
	// Workers is the pool size (0 = runtime.NumCPU()).
	Workers int
	// ContinueOnError records failures in the result instead of aborting.
	ContinueOnError bool
	// WithGradient includes the gradient in every score.
	WithGradient bool
	// Alphabet defaults to alphabet.Default() when nil.
	Alphabet *alphabet.Alphabet
	CTC      ctc.Config
	Progress ProgressCallback
}

// Result holds the ordered scores of a batch run.
type Result struct {
	Scores   []report.Score
	Failed   int
	Duration time.Duration
	Workers  int
}

type jobItem struct {
	index int
	job   Job
}

type jobResult struct {
	index int
	score report.Score
	err   error
}

// Run scores jobs concurrently and returns the results in input order. On
// the first failure Run cancels the remaining jobs and returns the error,
// unless ContinueOnError is set.
func Run(ctx context.Context, jobs []Job, cfg Config) (*Result, error) {
	if len(jobs) == 0 {
		return nil, errors.New("no jobs provided")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	cfg.Workers = min(cfg.Workers, len(jobs))
	if cfg.Alphabet == nil {
		cfg.Alphabet = alphabet.Default()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	progress.OnStart(len(jobs))
	defer progress.OnComplete()

	items := make(chan jobItem)
	results := make(chan jobResult, len(jobs))

	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go worker(ctx, items, results, &wg, cfg)
	}

	go func() {
		defer close(items)
		for i, job := range jobs {
			select {
			case items <- jobItem{index: i, job: job}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	scores := make([]report.Score, len(jobs))
	errs := make([]error, len(jobs))
	done := 0
	for r := range results {
		scores[r.index] = r.score
		errs[r.index] = r.err
		done++
		if r.err != nil {
			progress.OnError(r.index, r.err)
			if !cfg.ContinueOnError {
				cancel()
			}
		}
		progress.OnProgress(done, len(jobs))
	}

	res := &Result{Scores: scores, Duration: time.Since(start), Workers: cfg.Workers}
	for i, err := range errs {
		if err == nil {
			continue
		}
		if !cfg.ContinueOnError {
			return nil, fmt.Errorf("job %d (%s): %w", i, jobs[i].Source(), err)
		}
		res.Failed++
		scores[i].Error = err.Error()
	}
	if done < len(jobs) {
		return nil, ctx.Err()
	}

	slog.Info("Batch finished", "jobs", len(jobs), "failed", res.Failed, "workers", cfg.Workers,
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

func worker(ctx context.Context, items <-chan jobItem, results chan<- jobResult, wg *sync.WaitGroup, cfg Config) {
	defer wg.Done()

	for {
		select {
		case item, ok := <-items:
			if !ok {
				return
			}
			score, err := process(item.job, cfg)
			results <- jobResult{index: item.index, score: score, err: err}
		case <-ctx.Done():
			return
		}
	}
}

// process runs one job. The returned score always carries the source.
func process(job Job, cfg Config) (report.Score, error) {
	start := time.Now()
	out := report.Score{Source: job.Source(), Label: job.Label}

	em, err := job.Matrix()
	if err != nil {
		return out, err
	}

	if job.Mode == ModeDecode {
		path, err := ctc.Decode(cfg.Alphabet, em, cfg.CTC)
		if err != nil {
			return out, err
		}
		out = report.Decoded(path, em.Steps())
	} else if cfg.WithGradient {
		req, err := ctc.NewRequest(cfg.Alphabet, job.Label, em, cfg.CTC)
		if err != nil {
			return out, err
		}
		res, err := req.Result()
		if err != nil {
			return out, err
		}
		out = report.FromResult(res, true)
	} else {
		// Without a gradient the rolling forward pass is enough.
		p, err := ctc.Score(cfg.Alphabet, job.Label, em, cfg.CTC)
		if err != nil {
			return out, err
		}
		path, err := ctc.Decode(cfg.Alphabet, em, cfg.CTC)
		if err != nil {
			return out, err
		}
		out = report.Probability(job.Label, p, em.Steps())
		out.BestPath = path
	}

	out.Source = job.Source()
	out.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	slog.Debug("Processed batch job", "source", out.Source, "steps", em.Steps())
	return out, nil
}

// Write renders the scores with report.Write.
func (r *Result) Write(w io.Writer, format string, precision int) error {
	return report.Write(w, r.Scores, format, precision)
}

// PrintStats writes a short summary of the run.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Scores)
	_, _ = fmt.Fprintf(w, "\nBatch Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total jobs: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Succeeded: %d\n", total-r.Failed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 && r.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f jobs/sec\n", float64(total)/r.Duration.Seconds())
	}
}

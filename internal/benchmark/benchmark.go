// Package benchmark times the scoring stages on synthetic inputs.
package benchmark

import (
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/emission"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 // Currently allocated bytes
	TotalAllocBytes uint64 // Total allocated bytes (cumulative)
	NumGC           uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		NumGC:           m.NumGC,
	}
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration of one iteration.
func (r Result) Average() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedPerOp returns the bytes allocated per iteration.
func (r Result) AllocatedPerOp() uint64 {
	if r.Iterations == 0 {
		return 0
	}
	return (r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / uint64(r.Iterations) //nolint:gosec // G115: Iterations is positive
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d B/op",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedPerOp())
}

// Benchmark is a named function timed over several iterations.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{
		benchmarks: make([]Benchmark, 0),
		results:    make([]Result, 0),
	}
}

// Add appends a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names lists the benchmarks in the order they were added.
func (s *Suite) Names() []string {
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return s.runBenchmark(b, iterations)
		}
	}
	return Result{
		Name:  name,
		Error: fmt.Errorf("benchmark '%s' not found", name),
	}
}

// RunAll runs every benchmark in the suite.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, s.runBenchmark(b, iterations))
	}
	return s.results
}

func (s *Suite) runBenchmark(b Benchmark, iterations int) Result {
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := NewTimer(b.Name)
	var err error
	for range iterations {
		if e := b.Func(); e != nil {
			err = e
			break
		}
	}

	duration := timer.Stop()
	return Result{
		Name:         b.Name,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   iterations,
		Error:        err,
	}
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// WriteResults prints the last RunAll results.
func (s *Suite) WriteResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

// Case is one input size: a random T x K matrix and a random label.
type Case struct {
	Steps       int
	LabelLength int
}

func (c Case) String() string {
	return fmt.Sprintf("T=%d/L=%d", c.Steps, c.LabelLength)
}

// NewCTCSuite builds forward, backward, gradient and decode benchmarks for
// every case. Inputs are drawn from seed so runs are comparable.
func NewCTCSuite(ab *alphabet.Alphabet, cases []Case, seed uint64) (*Suite, error) {
	rng := rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // G404: benchmark inputs
	suite := NewSuite()
	cfg := ctc.DefaultConfig()

	for _, c := range cases {
		if c.Steps <= 0 || c.LabelLength < 0 {
			return nil, fmt.Errorf("invalid benchmark case %s", c)
		}
		label := randomLabel(ab, c.LabelLength, rng)
		em := emission.Random(c.Steps, ab.Size(), 0.05, rng)
		req, err := ctc.NewRequest(ab, ab.Decode(label), em, cfg)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c, err)
		}

		dense := em.Dense()
		ext := req.Extended()
		blank := ab.Blank()

		suite.Add("forward/"+c.String(), func() error {
			ctc.Forward(dense, ext, blank)
			return nil
		})
		suite.Add("backward/"+c.String(), func() error {
			ctc.Backward(dense, ext, blank)
			return nil
		})
		suite.Add("gradient/"+c.String(), func() error {
			alpha := ctc.Forward(dense, ext, blank)
			beta := ctc.Backward(dense, ext, blank)
			ctc.Gradient(dense, ext, alpha, beta, ctc.Probability(alpha))
			return nil
		})
		suite.Add("decode/"+c.String(), func() error {
			ctc.BestPath(dense, blank)
			return nil
		})
	}
	return suite, nil
}

// randomLabel draws non-blank symbols without immediate repeats, so the
// label needs exactly n steps.
func randomLabel(ab *alphabet.Alphabet, n int, rng *rand.Rand) []int {
	label := make([]int, 0, n)
	for len(label) < n {
		k := rng.IntN(ab.Size())
		if k == ab.Blank() || (len(label) > 0 && label[len(label)-1] == k) {
			continue
		}
		label = append(label, k)
	}
	return label
}

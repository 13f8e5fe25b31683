package ctc

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/emission"
	"gonum.org/v1/gonum/mat"
)

// Config controls validation of a Request.
type Config struct {
	// Strict rejects infeasible alignments up front and reports non-finite
	// gradients as errors. With Strict off the raw recurrence results are
	// returned unchanged, zeros and Inf/NaN included.
	Strict bool
	// RowSumTolerance is the allowed deviation of each emission row sum from 1.
	RowSumTolerance float64
	// MaxTimeSteps bounds T (0 = unbounded).
	MaxTimeSteps int
	// MaxLabelLength bounds the label length (0 = unbounded).
	MaxLabelLength int
	// NormalizeLabels folds case and diacritics before encoding.
	NormalizeLabels bool
}

// DefaultConfig returns strict validation with the default tolerance.
func DefaultConfig() Config {
	return Config{
		Strict:          true,
		RowSumTolerance: emission.DefaultRowSumTolerance,
		MaxTimeSteps:    10000,
		MaxLabelLength:  1000,
	}
}

// Result bundles everything computed for one (label, emissions) pair.
type Result struct {
	Label       string
	Probability float64
	Gradient    *mat.Dense
	BestPath    string
}

// Request scores one label against one emission matrix. Tables are computed
// on first use and kept. A Request is not safe for concurrent use; separate
// requests share nothing.
type Request struct {
	ab        *alphabet.Alphabet
	cfg       Config
	label     string
	encoded   []int
	emissions *emission.Matrix

	ext      []int
	alpha    *mat.Dense
	beta     *mat.Dense
	prob     float64
	hasProb  bool
	grad     *mat.Dense
	gradErr  error
	hasGrad  bool
	bestPath string
	hasBest  bool
}

// NewRequest validates the inputs and prepares a request. No dynamic
// programming runs here.
func NewRequest(ab *alphabet.Alphabet, label string, em *emission.Matrix, cfg Config) (*Request, error) {
	if ab == nil {
		ab = alphabet.Default()
	}
	if cfg.NormalizeLabels {
		label = alphabet.NormalizeLabel(label)
	}
	encoded, err := ab.Encode(label)
	if err != nil {
		return nil, err
	}
	if err := em.Validate(ab.Size(), cfg.RowSumTolerance); err != nil {
		return nil, err
	}

	steps := em.Steps()
	if cfg.MaxTimeSteps > 0 && steps > cfg.MaxTimeSteps {
		return nil, fmt.Errorf("%w: %d time steps exceeds limit %d", ErrTooLarge, steps, cfg.MaxTimeSteps)
	}
	if cfg.MaxLabelLength > 0 && len(encoded) > cfg.MaxLabelLength {
		return nil, fmt.Errorf("%w: label length %d exceeds limit %d", ErrTooLarge, len(encoded), cfg.MaxLabelLength)
	}
	if cfg.Strict {
		if need := MinSteps(encoded); steps < need {
			slog.Debug("Rejecting infeasible alignment", "label_length", len(encoded), "steps", steps, "min_steps", need)
			return nil, &InfeasibleError{Steps: steps, MinSteps: need}
		}
	}

	return &Request{
		ab:        ab,
		cfg:       cfg,
		label:     label,
		encoded:   encoded,
		emissions: em,
	}, nil
}

// Label returns the label as scored, after optional normalization.
func (r *Request) Label() string { return r.label }

// Extended returns the blank-interleaved label indices.
func (r *Request) Extended() []int {
	if r.ext == nil {
		r.ext = Extend(r.encoded, r.ab.Blank())
	}
	return r.ext
}

// Alpha returns the forward table.
func (r *Request) Alpha() *mat.Dense {
	if r.alpha == nil {
		ext := r.Extended()
		slog.Debug("Filling forward table", "steps", r.emissions.Steps(), "positions", len(ext))
		r.alpha = Forward(r.emissions.Dense(), ext, r.ab.Blank())
	}
	return r.alpha
}

// Beta returns the backward table.
func (r *Request) Beta() *mat.Dense {
	if r.beta == nil {
		ext := r.Extended()
		slog.Debug("Filling backward table", "steps", r.emissions.Steps(), "positions", len(ext))
		r.beta = Backward(r.emissions.Dense(), ext, r.ab.Blank())
	}
	return r.beta
}

// Probability returns P(label | emissions). It fills only the forward table.
func (r *Request) Probability() float64 {
	if !r.hasProb {
		r.prob = Probability(r.Alpha())
		r.hasProb = true
	}
	return r.prob
}

// Gradient returns d(-log P)/d emissions, T x K. In strict mode a zero
// probability or any non-finite entry yields ErrNumericalInstability.
func (r *Request) Gradient() (*mat.Dense, error) {
	if r.hasGrad {
		return r.grad, r.gradErr
	}
	r.hasGrad = true

	p := r.Probability()
	if r.cfg.Strict && p == 0 {
		r.gradErr = &NumericalError{Step: -1, Class: -1}
		return nil, r.gradErr
	}
	grad := Gradient(r.emissions.Dense(), r.Extended(), r.Alpha(), r.Beta(), p)
	if r.cfg.Strict {
		if err := CheckFinite(grad); err != nil {
			r.gradErr = err
			return nil, err
		}
	}
	r.grad = grad
	return grad, nil
}

// BestPath returns the greedy decode of the emissions. It ignores the label.
func (r *Request) BestPath() string {
	if !r.hasBest {
		r.bestPath = r.ab.Decode(BestPath(r.emissions.Dense(), r.ab.Blank()))
		r.hasBest = true
	}
	return r.bestPath
}

// Result computes probability, gradient and best path together.
func (r *Request) Result() (*Result, error) {
	grad, err := r.Gradient()
	if err != nil {
		return nil, err
	}
	return &Result{
		Label:       r.label,
		Probability: r.Probability(),
		Gradient:    grad,
		BestPath:    r.BestPath(),
	}, nil
}

// Decode is the label-free entry point: it validates em and returns its best
// path.
func Decode(ab *alphabet.Alphabet, em *emission.Matrix, cfg Config) (string, error) {
	if ab == nil {
		ab = alphabet.Default()
	}
	if err := em.Validate(ab.Size(), cfg.RowSumTolerance); err != nil {
		return "", err
	}
	if cfg.MaxTimeSteps > 0 && em.Steps() > cfg.MaxTimeSteps {
		return "", fmt.Errorf("%w: %d time steps exceeds limit %d", ErrTooLarge, em.Steps(), cfg.MaxTimeSteps)
	}
	return ab.Decode(BestPath(em.Dense(), ab.Blank())), nil
}

// Score returns only P(label | emissions) using the rolling forward pass.
func Score(ab *alphabet.Alphabet, label string, em *emission.Matrix, cfg Config) (float64, error) {
	r, err := NewRequest(ab, label, em, cfg)
	if err != nil {
		return 0, err
	}
	return ForwardProbability(em.Dense(), r.Extended(), r.ab.Blank()), nil
}

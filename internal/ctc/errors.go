package ctc

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasibleAlignment is returned when the label cannot be aligned with
	// the number of available time steps.
	ErrInfeasibleAlignment = errors.New("infeasible alignment")
	// ErrNumericalInstability is returned when the probability-domain
	// recurrence produced a zero probability or a non-finite gradient entry.
	ErrNumericalInstability = errors.New("numerical instability")
	// ErrTooLarge is returned when an input exceeds the configured bounds.
	ErrTooLarge = errors.New("input too large")
)

// InfeasibleError reports how many steps the label needs.
type InfeasibleError struct {
	Steps    int
	MinSteps int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("infeasible alignment: label needs at least %d time steps, emissions have %d",
		e.MinSteps, e.Steps)
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasibleAlignment }

// NumericalError identifies the first offending gradient cell. Step and
// Class are -1 when the total probability itself is zero.
type NumericalError struct {
	Step  int
	Class int
	Value float64
}

func (e *NumericalError) Error() string {
	if e.Step < 0 {
		return "numerical instability: label probability underflowed to zero"
	}
	return fmt.Sprintf("numerical instability: gradient at step %d class %d is %g", e.Step, e.Class, e.Value)
}

func (e *NumericalError) Unwrap() error { return ErrNumericalInstability }

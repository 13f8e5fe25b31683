// Package alphabet maps label symbols to the dense class indices used by the
// emission matrix columns.
package alphabet

import (
	"errors"
	"fmt"
	"strings"
)

// BlankSymbol is the reserved symbol for "no label emitted".
const BlankSymbol = '0'

// ErrUnknownSymbol is returned when a label contains a symbol that is not part
// of the alphabet, or contains the blank symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// SymbolError describes the offending symbol and its position in the label.
type SymbolError struct {
	Symbol   rune
	Position int
	Blank    bool
}

func (e *SymbolError) Error() string {
	if e.Blank {
		return fmt.Sprintf("blank symbol %q not allowed in label at position %d", e.Symbol, e.Position)
	}
	return fmt.Sprintf("unknown symbol %q at position %d", e.Symbol, e.Position)
}

func (e *SymbolError) Unwrap() error { return ErrUnknownSymbol }

// Alphabet is an immutable bijection between symbols and indices 0..Size()-1.
type Alphabet struct {
	symbols []rune
	index   map[rune]int
	blank   int
}

var defaultAlphabet = mustNew([]rune("abcdefghijklmnopqrstuvwxyz0"), BlankSymbol)

// Default returns the 27-symbol alphabet: 'a'..'z' at 0..25 and the blank '0'
// at 26. Upstream models emit columns in exactly this order.
func Default() *Alphabet {
	return defaultAlphabet
}

// New builds an alphabet from an ordered symbol list. The blank symbol must be
// present and every symbol must be unique.
func New(symbols []rune, blank rune) (*Alphabet, error) {
	if len(symbols) == 0 {
		return nil, errors.New("alphabet cannot be empty")
	}
	idx := make(map[rune]int, len(symbols))
	for i, r := range symbols {
		if _, dup := idx[r]; dup {
			return nil, fmt.Errorf("duplicate symbol %q at index %d", r, i)
		}
		idx[r] = i
	}
	b, ok := idx[blank]
	if !ok {
		return nil, fmt.Errorf("blank symbol %q not in alphabet", blank)
	}
	syms := make([]rune, len(symbols))
	copy(syms, symbols)
	return &Alphabet{symbols: syms, index: idx, blank: b}, nil
}

func mustNew(symbols []rune, blank rune) *Alphabet {
	a, err := New(symbols, blank)
	if err != nil {
		panic(err)
	}
	return a
}

// Size returns the number of symbols, blank included.
func (a *Alphabet) Size() int { return len(a.symbols) }

// Blank returns the blank index.
func (a *Alphabet) Blank() int { return a.blank }

// BlankSymbol returns the blank rune.
func (a *Alphabet) BlankSymbol() rune { return a.symbols[a.blank] }

// Index returns the index of r.
func (a *Alphabet) Index(r rune) (int, bool) {
	i, ok := a.index[r]
	return i, ok
}

// Symbol returns the symbol at index i.
func (a *Alphabet) Symbol(i int) (rune, bool) {
	if i < 0 || i >= len(a.symbols) {
		return 0, false
	}
	return a.symbols[i], true
}

// Symbols returns a copy of the symbols in index order.
func (a *Alphabet) Symbols() []rune {
	out := make([]rune, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// Encode converts a label string into indices. Labels must not contain blanks.
func (a *Alphabet) Encode(label string) ([]int, error) {
	out := make([]int, 0, len(label))
	pos := 0
	for _, r := range label {
		i, ok := a.index[r]
		if !ok {
			return nil, &SymbolError{Symbol: r, Position: pos}
		}
		if i == a.blank {
			return nil, &SymbolError{Symbol: r, Position: pos, Blank: true}
		}
		out = append(out, i)
		pos++
	}
	return out, nil
}

// Decode converts indices back into a string. Out-of-range indices are
// rendered as U+FFFD.
func (a *Alphabet) Decode(indices []int) string {
	var sb strings.Builder
	sb.Grow(len(indices))
	for _, i := range indices {
		r, ok := a.Symbol(i)
		if !ok {
			r = '\uFFFD'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

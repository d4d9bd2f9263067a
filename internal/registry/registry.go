// Package registry holds the fixed set of tradable instruments.
//
// A Registry is a value: lookups return copies, and Replace produces a new
// Registry rather than modifying the receiver. Membership is fixed at New;
// no instrument can be added or removed afterwards.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/marketsim/engine/internal/model"
)

var (
	// ErrEmptySymbol is returned when an instrument has no symbol.
	ErrEmptySymbol = errors.New("registry: instrument symbol is empty")

	// ErrDuplicateSymbol is returned when two instruments share a symbol.
	ErrDuplicateSymbol = errors.New("registry: duplicate instrument symbol")

	// ErrMembershipChanged is returned by Replace when the updated set does
	// not contain exactly the registered symbols.
	ErrMembershipChanged = errors.New("registry: instrument membership cannot change")
)

// Registry maps symbol → instrument. The zero value is an empty registry.
type Registry struct {
	bySymbol map[string]model.Instrument
}

// New builds a registry from the seed instruments.
func New(instruments []model.Instrument) (Registry, error) {
	m := make(map[string]model.Instrument, len(instruments))
	for _, inst := range instruments {
		if inst.Symbol == "" {
			return Registry{}, ErrEmptySymbol
		}
		if _, dup := m[inst.Symbol]; dup {
			return Registry{}, fmt.Errorf("%w: %s", ErrDuplicateSymbol, inst.Symbol)
		}
		m[inst.Symbol] = inst.Clone()
	}
	return Registry{bySymbol: m}, nil
}

// Get returns the instrument for symbol. ok is false for unknown symbols.
func (r Registry) Get(symbol string) (inst model.Instrument, ok bool) {
	inst, ok = r.bySymbol[symbol]
	if !ok {
		return model.Instrument{}, false
	}
	return inst.Clone(), true
}

// Len returns the number of registered instruments.
func (r Registry) Len() int {
	return len(r.bySymbol)
}

// Symbols returns the registered symbols in ascending order.
func (r Registry) Symbols() []string {
	out := make([]string, 0, len(r.bySymbol))
	for sym := range r.bySymbol {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// All returns every instrument ordered by symbol.
func (r Registry) All() []model.Instrument {
	out := make([]model.Instrument, 0, len(r.bySymbol))
	for _, sym := range r.Symbols() {
		out = append(out, r.bySymbol[sym].Clone())
	}
	return out
}

// Sectors returns the distinct sectors present, sorted.
func (r Registry) Sectors() []string {
	seen := make(map[string]bool)
	var out []string
	for _, inst := range r.bySymbol {
		if !seen[inst.Sector] {
			seen[inst.Sector] = true
			out = append(out, inst.Sector)
		}
	}
	sort.Strings(out)
	return out
}

// Replace returns a new registry holding updated. updated must contain
// exactly one entry for every registered symbol and nothing else.
func (r Registry) Replace(updated []model.Instrument) (Registry, error) {
	if len(updated) != len(r.bySymbol) {
		return Registry{}, fmt.Errorf("%w: have %d instruments, got %d",
			ErrMembershipChanged, len(r.bySymbol), len(updated))
	}
	m := make(map[string]model.Instrument, len(updated))
	for _, inst := range updated {
		if _, known := r.bySymbol[inst.Symbol]; !known {
			return Registry{}, fmt.Errorf("%w: unknown symbol %s", ErrMembershipChanged, inst.Symbol)
		}
		if _, dup := m[inst.Symbol]; dup {
			return Registry{}, fmt.Errorf("%w: %s", ErrDuplicateSymbol, inst.Symbol)
		}
		m[inst.Symbol] = inst.Clone()
	}
	return Registry{bySymbol: m}, nil
}

// Package promo keeps the set of named discount strategies and selects the
// best one for a pricing context.
package promo

import (
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/pricing"
)

var (
	// ErrEmptyRegistry is returned when a selection is requested from a
	// registry with no strategies. A zero discount would hide the
	// misconfiguration, so this is always an error.
	ErrEmptyRegistry = errors.New("no promo strategies registered")
	// ErrInvalidStrategy is returned when registering an unnamed or nil strategy.
	ErrInvalidStrategy = errors.New("invalid promo strategy")
)

// DuplicateStrategyError indicates a strategy name is already registered.
type DuplicateStrategyError struct {
	Name string
}

func (e *DuplicateStrategyError) Error() string {
	return fmt.Sprintf("promo strategy %q already registered", e.Name)
}

// UnknownStrategyError indicates a lookup for a name that was never registered.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("promo strategy %q not registered", e.Name)
}

// Entry is a named strategy.
type Entry struct {
	Name     string
	Strategy pricing.Strategy
}

// Selection is the discount a named strategy yields for a context.
type Selection struct {
	Name   string
	Amount decimal.Decimal
}

// Registry maps unique names to strategies. Registration is append-only;
// queries may run concurrently with registration.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	byName  map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// NewRegistryFrom builds a registry from the given entries, in order.
func NewRegistryFrom(entries ...Entry) (*Registry, error) {
	r := NewRegistry()
	for _, e := range entries {
		if err := r.Register(e.Name, e.Strategy); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s under name. It returns *DuplicateStrategyError if the name
// is taken; the existing registration is left untouched.
func (r *Registry) Register(name string, s pricing.Strategy) error {
	if name == "" || s == nil {
		return errors.Wrapf(ErrInvalidStrategy, "register %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return &DuplicateStrategyError{Name: name}
	}
	r.byName[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Strategy: s})
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, s pricing.Strategy) {
	if err := r.Register(name, s); err != nil {
		panic(err)
	}
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (pricing.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.entries[i].Strategy, true
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// snapshot returns the current entries. The backing array is never mutated
// in place (Register only appends), so the returned slice stays consistent
// after the lock is released.
func (r *Registry) snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[:len(r.entries):len(r.entries)]
}

// Evaluate returns the discount of every registered strategy for c, in
// registration order. Amounts are clamped to [0, c.Total()].
func (r *Registry) Evaluate(c *pricing.Context) ([]Selection, error) {
	entries := r.snapshot()
	if len(entries) == 0 {
		return nil, ErrEmptyRegistry
	}

	total := c.Total()
	out := make([]Selection, len(entries))
	for i, e := range entries {
		out[i] = Selection{
			Name:   e.Name,
			Amount: pricing.Clamp(e.Strategy(c), total),
		}
	}
	return out, nil
}

// Best evaluates every strategy against c and returns the largest discount.
// Ties go to the earliest registered strategy.
func (r *Registry) Best(c *pricing.Context) (Selection, error) {
	all, err := r.Evaluate(c)
	if err != nil {
		return Selection{}, err
	}

	best := all[0]
	for _, s := range all[1:] {
		if s.Amount.GreaterThan(best.Amount) {
			best = s
		}
	}
	return best, nil
}

// BestDiscount returns the maximum discount any registered strategy grants c.
func (r *Registry) BestDiscount(c *pricing.Context) (decimal.Decimal, error) {
	s, err := r.Best(c)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Amount, nil
}

// BestStrategy returns a strategy that applies the best registered discount.
// The returned strategy panics with ErrEmptyRegistry if the registry is still
// empty when it is invoked, and pricing.Context.Due has no error path to report
// it. Callers that cannot rule out an empty registry should check Len() > 0
// first, or use Best or BestDiscount, which return the error.
func (r *Registry) BestStrategy() pricing.Strategy {
	return func(c *pricing.Context) decimal.Decimal {
		amount, err := r.BestDiscount(c)
		if err != nil {
			panic(err)
		}
		return amount
	}
}

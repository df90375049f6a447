package reference

import (
	"context"
	"errors"

	"github.com/KarimEG45/CoranBuilding/internal/resilience"
)

// Fallback tries each provider in order. A missing page neither trips a
// breaker nor stops the walk: the next provider may still have it.
type Fallback struct {
	group *resilience.FallbackGroup[Provider]
}

var _ Provider = (*Fallback)(nil)

// NewFallback creates a Fallback with primary as its first provider.
func NewFallback(primary Provider, primaryName string, cb resilience.CircuitBreakerConfig) *Fallback {
	cb.Neutral = func(err error) bool {
		return resilience.IsCallerError(err) || errors.Is(err, ErrNotFound)
	}
	return &Fallback{
		group: resilience.NewFallbackGroup(primary, primaryName, resilience.FallbackConfig{CircuitBreaker: cb}),
	}
}

// AddFallback appends p.
func (f *Fallback) AddFallback(name string, p Provider) {
	f.group.AddFallback(name, p)
}

// Names returns the provider names in the order they are tried.
func (f *Fallback) Names() []string { return f.group.Names() }

// Text implements [Provider]. When every provider fails the error still
// matches [ErrNotFound] if the last one reported a missing page.
func (f *Fallback) Text(ctx context.Context, page int) (string, error) {
	if err := checkPage(page); err != nil {
		return "", err
	}
	return resilience.ExecuteWithResult(f.group, func(p Provider) (string, error) {
		return p.Text(ctx, page)
	})
}

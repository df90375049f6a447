// Package reference supplies the canonical Uthmani text of a Mushaf page.
//
// Three providers are available: [AlQuran] queries the alquran.cloud REST
// API, [Dir] reads pre-exported page files, and [Fallback] chains several
// providers behind circuit breakers.
package reference

import (
	"context"
	"errors"
	"fmt"
)

// Page bounds of the Madani Mushaf.
const (
	FirstPage = 1
	LastPage  = 604
)

// ErrNotFound is returned when a page is out of range or no text exists
// for it.
var ErrNotFound = errors.New("reference: page not found")

// Provider returns the reference text of a page, words separated by single
// spaces. Implementations must be safe for concurrent use.
type Provider interface {
	Text(ctx context.Context, page int) (string, error)
}

// ValidPage reports whether page lies in [FirstPage, LastPage].
func ValidPage(page int) bool {
	return page >= FirstPage && page <= LastPage
}

func checkPage(page int) error {
	if !ValidPage(page) {
		return fmt.Errorf("%w: page %d out of range %d..%d", ErrNotFound, page, FirstPage, LastPage)
	}
	return nil
}

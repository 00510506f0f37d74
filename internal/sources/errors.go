package sources

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, resets, HTTP
	// 5xx, HTTP 429.
	ErrTransient = errors.New("transient scrape failure")

	// ErrBlocked marks access denials (HTTP 403, interstitial challenges).
	// Retrying is pointless until an operator intervenes.
	ErrBlocked = errors.New("blocked by site")

	// ErrStructural marks pages that fetched but no longer match the
	// adapter's expected layout.
	ErrStructural = errors.New("page structure changed")

	// errNotFound is internal: a 404 for a registration the site does not
	// know. Adapters translate it into an empty result.
	errNotFound = errors.New("not found")
)

// IsTerminal reports whether a search error should fail its job without
// further retries.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrStructural)
}

// IsTransient reports whether a search error is worth another attempt.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// wrap tags err with a sentinel marker and source context.
func wrap(marker error, source, detail string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %s: %w", marker, source, detail, err)
	}
	return fmt.Errorf("%w: %s: %s", marker, source, detail)
}

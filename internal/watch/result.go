// Package watch implements the availability watch pipeline: normalize
// fetched page text, extract the status token next to the watched label,
// cache observations behind a single-flight TTL cache, and notify
// subscribers when the status changes.
package watch

import (
	"fmt"
	"time"
)

// Status is one normalized availability token taken from the page,
// for example "満席" or "残1席".
type Status string

// Kind discriminates the outcome of one observation of the page.
type Kind int

const (
	// KindSuccess means a status token was extracted.
	KindSuccess Kind = iota
	// KindNotFound means the page was fetched but no recognized token
	// appeared near the label. This is not an error: the page layout
	// changed or the label is gone.
	KindNotFound
	// KindError means the page could not be fetched at all.
	KindError
)

// String returns a short lowercase name for logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNotFound:
		return "not_found"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of observing the watched page once.
// Exactly one of Status, Snippet or Err carries the payload, selected
// by Kind. Snippet is also set on success for the debug command.
type Result struct {
	Kind       Kind
	Status     Status    // set when Kind == KindSuccess
	Snippet    string    // bounded page excerpt for diagnostics
	Err        error     // set when Kind == KindError
	ObservedAt time.Time // when the page was read (or the read failed)
}

// OK reports whether the observation produced a usable status.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

func successResult(status Status, snippet string) Result {
	return Result{
		Kind:       KindSuccess,
		Status:     status,
		Snippet:    snippet,
		ObservedAt: time.Now(),
	}
}

func notFoundResult(snippet string) Result {
	return Result{
		Kind:       KindNotFound,
		Snippet:    snippet,
		ObservedAt: time.Now(),
	}
}

func errorResult(err error) Result {
	return Result{
		Kind:       KindError,
		Err:        err,
		ObservedAt: time.Now(),
	}
}

package upstream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/illmade-knight/go-postcache/pkg/types"
)

// ErrUnavailable means no query variant produced a usable response.
var ErrUnavailable = errors.New("upstream unavailable")

// ErrMalformedResponse is a 2xx response whose body could not be decoded. It
// is handled exactly like ErrUnavailable.
var ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrUnavailable)

// RejectedError is a non-success HTTP status from the upstream.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request: status %d", e.Status)
}

// UnavailableError aggregates every failed attempt of one fetch.
type UnavailableError struct {
	Attempts []types.Attempt
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		switch {
		case a.Status != 0:
			parts = append(parts, fmt.Sprintf("%q: status %d", a.Query, a.Status))
		case a.Error != "":
			parts = append(parts, fmt.Sprintf("%q: %s", a.Query, a.Error))
		default:
			parts = append(parts, fmt.Sprintf("%q: failed", a.Query))
		}
	}
	return fmt.Sprintf("no posts found for any query variant (%s)", strings.Join(parts, "; "))
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

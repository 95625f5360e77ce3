package fetcher

import (
	"errors"
	"fmt"

	"github.com/civiclabs/stancewatch/internal/model"
)

// ErrorKind discriminates fetch failures for scheduler classification.
type ErrorKind string

const (
	// KindNetwork covers timeouts, resets, and refused connections after
	// retries are exhausted.
	KindNetwork ErrorKind = "network"
	// KindDNS covers host-not-found failures.
	KindDNS ErrorKind = "dns"
	// KindHTTPStatus covers non-2xx responses, never retried.
	KindHTTPStatus ErrorKind = "http_status"
	// KindRedirect covers redirect chains exceeding the hop bound or
	// carrying an unusable Location header.
	KindRedirect ErrorKind = "redirect"
	// KindInvalidURL covers unparseable request URLs.
	KindInvalidURL ErrorKind = "invalid_url"
)

// FetchError is a classified retrieval failure. StatusCode is set only for
// KindHTTPStatus.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Class maps the failure onto the scheduler's skip-window buckets: DNS
// failures cool down longest, 403 medium, everything else shortest.
func (e *FetchError) Class() model.ErrorClass {
	switch {
	case e.Kind == KindDNS:
		return model.ErrorClassDNS
	case e.Kind == KindHTTPStatus && e.StatusCode == 403:
		return model.ErrorClassForbidden
	default:
		return model.ErrorClassOther
	}
}

// Classify returns the scheduler error class for any error surfaced by a
// crawl attempt. Non-fetch errors fall into the catch-all bucket.
func Classify(err error) model.ErrorClass {
	if err == nil {
		return model.ErrorClassNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class()
	}
	return model.ErrorClassOther
}

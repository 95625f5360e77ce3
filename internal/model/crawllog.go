package model

import "time"

// CrawlStatus is the aggregated outcome of one crawl attempt.
type CrawlStatus string

const (
	CrawlStatusSuccess CrawlStatus = "success"
	CrawlStatusError   CrawlStatus = "error"
)

// ErrorClass buckets crawl failures for the scheduler's skip windows.
type ErrorClass string

const (
	// ErrorClassNone marks successful attempts.
	ErrorClassNone ErrorClass = ""
	// ErrorClassDNS covers host-not-found failures, the longest cooldown.
	ErrorClassDNS ErrorClass = "host_not_found"
	// ErrorClassForbidden covers HTTP 403 responses.
	ErrorClassForbidden ErrorClass = "forbidden"
	// ErrorClassOther covers every remaining failure cause.
	ErrorClassOther ErrorClass = "other"
)

// CrawlLogEntry is one append-only audit record: exactly one per subject
// per crawl attempt, regardless of how many sub-pages were visited. Entries
// are never mutated or deleted; the scheduler reads the latest entry per
// subject to decide skip windows.
type CrawlLogEntry struct {
	ID             string        `json:"id"`
	SubjectID      string        `json:"subject_id"`
	SourceURL      string        `json:"source_url"`
	Status         CrawlStatus   `json:"status"`
	PositionsFound int           `json:"positions_found"`
	ErrorClass     ErrorClass    `json:"error_class,omitempty"`
	ErrorDetail    string        `json:"error_detail,omitempty"`
	Duration       time.Duration `json:"duration"`
	CrawledAt      time.Time     `json:"crawled_at"`
}

// Package store persists classified positions and the append-only crawl
// log. Two backends are provided: SQLite for single-process local runs and
// Postgres for shared deployments. The core assumes a single writer.
package store

import (
	"context"

	"github.com/civiclabs/stancewatch/internal/model"
)

// PositionFilter narrows position listings.
type PositionFilter struct {
	SubjectID string
	TopicSlug string
	Stance    model.Stance
	Limit     int
}

// CrawlLogFilter narrows crawl log listings.
type CrawlLogFilter struct {
	SubjectID string
	Status    model.CrawlStatus
	Limit     int
}

// Store is the persistence interface for the crawl pipeline.
type Store interface {
	// UpsertPosition writes a position, unconditionally replacing any
	// existing row for the same (subject_id, topic_id) pair.
	UpsertPosition(ctx context.Context, p model.Position) error
	GetPosition(ctx context.Context, subjectID, topicID string) (*model.Position, error)
	ListPositions(ctx context.Context, filter PositionFilter) ([]model.Position, error)

	// AppendCrawlLog appends one audit entry and returns it with its
	// assigned id. Entries are never mutated or deleted.
	AppendCrawlLog(ctx context.Context, e model.CrawlLogEntry) (*model.CrawlLogEntry, error)
	// LatestCrawlLogs returns the most recent entry per subject; the
	// scheduler derives skip windows from it.
	LatestCrawlLogs(ctx context.Context) (map[string]model.CrawlLogEntry, error)
	ListCrawlLog(ctx context.Context, filter CrawlLogFilter) ([]model.CrawlLogEntry, error)

	Migrate(ctx context.Context) error
	Close() error
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civiclabs/stancewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS positions (
	subject_id     TEXT NOT NULL,
	topic_id       TEXT NOT NULL,
	topic_slug     TEXT NOT NULL,
	summary        TEXT NOT NULL,
	detail         TEXT NOT NULL,
	stance         TEXT NOT NULL,
	strength       TEXT NOT NULL,
	confidence     REAL NOT NULL,
	is_key_issue   INTEGER NOT NULL DEFAULT 0,
	key_phrases    TEXT,
	source_url     TEXT NOT NULL,
	source_section TEXT NOT NULL,
	last_updated   DATETIME NOT NULL,
	PRIMARY KEY (subject_id, topic_id)
);

CREATE TABLE IF NOT EXISTS crawl_log (
	id              TEXT PRIMARY KEY,
	subject_id      TEXT NOT NULL,
	source_url      TEXT NOT NULL,
	status          TEXT NOT NULL,
	positions_found INTEGER NOT NULL DEFAULT 0,
	error_class     TEXT NOT NULL DEFAULT '',
	error_detail    TEXT,
	duration_ms     INTEGER NOT NULL,
	crawled_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_subject ON positions(subject_id);
CREATE INDEX IF NOT EXISTS idx_positions_topic ON positions(topic_slug);
CREATE INDEX IF NOT EXISTS idx_crawl_log_subject ON crawl_log(subject_id, crawled_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPosition(ctx context.Context, p model.Position) error {
	phrasesJSON, err := json.Marshal(p.KeyPhrases)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal key phrases")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO positions (
			subject_id, topic_id, topic_slug, summary, detail, stance, strength,
			confidence, is_key_issue, key_phrases, source_url, source_section, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, topic_id) DO UPDATE SET
			topic_slug     = excluded.topic_slug,
			summary        = excluded.summary,
			detail         = excluded.detail,
			stance         = excluded.stance,
			strength       = excluded.strength,
			confidence     = excluded.confidence,
			is_key_issue   = excluded.is_key_issue,
			key_phrases    = excluded.key_phrases,
			source_url     = excluded.source_url,
			source_section = excluded.source_section,
			last_updated   = excluded.last_updated`,
		p.SubjectID, p.TopicID, p.TopicSlug, p.Summary, p.Detail,
		string(p.Stance), string(p.Strength), p.Confidence, p.IsKeyIssue,
		string(phrasesJSON), p.SourceURL, p.SourceSection, p.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert position %s/%s", p.SubjectID, p.TopicID)
}

const positionColumns = `subject_id, topic_id, topic_slug, summary, detail, stance, strength,
	confidence, is_key_issue, key_phrases, source_url, source_section, last_updated`

func (s *SQLiteStore) GetPosition(ctx context.Context, subjectID, topicID string) (*model.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE subject_id = ? AND topic_id = ?`,
		subjectID, topicID,
	)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get position")
	}
	return p, nil
}

func (s *SQLiteStore) ListPositions(ctx context.Context, filter PositionFilter) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE 1=1`
	var args []any

	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	if filter.TopicSlug != "" {
		query += ` AND topic_slug = ?`
		args = append(args, filter.TopicSlug)
	}
	if filter.Stance != "" {
		query += ` AND stance = ?`
		args = append(args, string(filter.Stance))
	}
	query += ` ORDER BY subject_id, topic_slug`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list positions")
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan position")
		}
		positions = append(positions, *p)
	}
	return positions, eris.Wrap(rows.Err(), "sqlite: list positions iterate")
}

func (s *SQLiteStore) AppendCrawlLog(ctx context.Context, e model.CrawlLogEntry) (*model.CrawlLogEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CrawledAt.IsZero() {
		e.CrawledAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_log (
			id, subject_id, source_url, status, positions_found,
			error_class, error_detail, duration_ms, crawled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubjectID, e.SourceURL, string(e.Status), e.PositionsFound,
		string(e.ErrorClass), e.ErrorDetail, e.Duration.Milliseconds(), e.CrawledAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: append crawl log for %s", e.SubjectID)
	}
	return &e, nil
}

const crawlLogColumns = `id, subject_id, source_url, status, positions_found,
	error_class, error_detail, duration_ms, crawled_at`

func (s *SQLiteStore) LatestCrawlLogs(ctx context.Context) (map[string]model.CrawlLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+crawlLogColumns+` FROM crawl_log ORDER BY crawled_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest crawl logs")
	}
	defer rows.Close()

	latest := make(map[string]model.CrawlLogEntry)
	for rows.Next() {
		e, err := scanCrawlLog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan crawl log")
		}
		latest[e.SubjectID] = *e
	}
	return latest, eris.Wrap(rows.Err(), "sqlite: latest crawl logs iterate")
}

func (s *SQLiteStore) ListCrawlLog(ctx context.Context, filter CrawlLogFilter) ([]model.CrawlLogEntry, error) {
	query := `SELECT ` + crawlLogColumns + ` FROM crawl_log WHERE 1=1`
	var args []any

	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY crawled_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list crawl log")
	}
	defer rows.Close()

	var entries []model.CrawlLogEntry
	for rows.Next() {
		e, err := scanCrawlLog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan crawl log")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list crawl log iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanPosition(row scannable) (*model.Position, error) {
	var p model.Position
	var stance, strength string
	var phrasesJSON sql.NullString

	err := row.Scan(&p.SubjectID, &p.TopicID, &p.TopicSlug, &p.Summary, &p.Detail,
		&stance, &strength, &p.Confidence, &p.IsKeyIssue, &phrasesJSON,
		&p.SourceURL, &p.SourceSection, &p.LastUpdated)
	if err != nil {
		return nil, err
	}

	p.Stance = model.Stance(stance)
	p.Strength = model.Strength(strength)
	if phrasesJSON.Valid && phrasesJSON.String != "" {
		if err := json.Unmarshal([]byte(phrasesJSON.String), &p.KeyPhrases); err != nil {
			return nil, eris.Wrap(err, "unmarshal key phrases")
		}
	}
	return &p, nil
}

func scanCrawlLog(row scannable) (*model.CrawlLogEntry, error) {
	var e model.CrawlLogEntry
	var status, errClass string
	var errDetail sql.NullString
	var durationMS int64

	err := row.Scan(&e.ID, &e.SubjectID, &e.SourceURL, &status, &e.PositionsFound,
		&errClass, &errDetail, &durationMS, &e.CrawledAt)
	if err != nil {
		return nil, err
	}

	e.Status = model.CrawlStatus(status)
	e.ErrorClass = model.ErrorClass(errClass)
	e.ErrorDetail = errDetail.String
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}

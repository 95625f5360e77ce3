package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civiclabs/stancewatch/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. Declared as an
// interface so tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS positions (
	subject_id     TEXT NOT NULL,
	topic_id       TEXT NOT NULL,
	topic_slug     TEXT NOT NULL,
	summary        TEXT NOT NULL,
	detail         TEXT NOT NULL,
	stance         TEXT NOT NULL,
	strength       TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	is_key_issue   BOOLEAN NOT NULL DEFAULT FALSE,
	key_phrases    JSONB,
	source_url     TEXT NOT NULL,
	source_section TEXT NOT NULL,
	last_updated   TIMESTAMPTZ NOT NULL,
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
	duration_ms     BIGINT NOT NULL,
	crawled_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_subject ON positions(subject_id);
CREATE INDEX IF NOT EXISTS idx_positions_topic ON positions(topic_slug);
CREATE INDEX IF NOT EXISTS idx_crawl_log_subject ON crawl_log(subject_id, crawled_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p model.Position) error {
	phrasesJSON, err := json.Marshal(p.KeyPhrases)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal key phrases")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO positions (
			subject_id, topic_id, topic_slug, summary, detail, stance, strength,
			confidence, is_key_issue, key_phrases, source_url, source_section, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (subject_id, topic_id) DO UPDATE SET
			topic_slug     = EXCLUDED.topic_slug,
			summary        = EXCLUDED.summary,
			detail         = EXCLUDED.detail,
			stance         = EXCLUDED.stance,
			strength       = EXCLUDED.strength,
			confidence     = EXCLUDED.confidence,
			is_key_issue   = EXCLUDED.is_key_issue,
			key_phrases    = EXCLUDED.key_phrases,
			source_url     = EXCLUDED.source_url,
			source_section = EXCLUDED.source_section,
			last_updated   = EXCLUDED.last_updated`,
		p.SubjectID, p.TopicID, p.TopicSlug, p.Summary, p.Detail,
		string(p.Stance), string(p.Strength), p.Confidence, p.IsKeyIssue,
		string(phrasesJSON), p.SourceURL, p.SourceSection, p.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert position %s/%s", p.SubjectID, p.TopicID)
}

func (s *PostgresStore) GetPosition(ctx context.Context, subjectID, topicID string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE subject_id = $1 AND topic_id = $2`,
		subjectID, topicID,
	)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get position")
	}
	return p, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context, filter PositionFilter) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE 1=1`
	var args []any

	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += ` AND subject_id = $` + strconv.Itoa(len(args))
	}
	if filter.TopicSlug != "" {
		args = append(args, filter.TopicSlug)
		query += ` AND topic_slug = $` + strconv.Itoa(len(args))
	}
	if filter.Stance != "" {
		args = append(args, string(filter.Stance))
		query += ` AND stance = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY subject_id, topic_slug`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list positions")
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan position")
		}
		positions = append(positions, *p)
	}
	return positions, eris.Wrap(rows.Err(), "postgres: list positions iterate")
}

func (s *PostgresStore) AppendCrawlLog(ctx context.Context, e model.CrawlLogEntry) (*model.CrawlLogEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CrawledAt.IsZero() {
		e.CrawledAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_log (
			id, subject_id, source_url, status, positions_found,
			error_class, error_detail, duration_ms, crawled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.SubjectID, e.SourceURL, string(e.Status), e.PositionsFound,
		string(e.ErrorClass), e.ErrorDetail, e.Duration.Milliseconds(), e.CrawledAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: append crawl log for %s", e.SubjectID)
	}
	return &e, nil
}

func (s *PostgresStore) LatestCrawlLogs(ctx context.Context) (map[string]model.CrawlLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (subject_id) `+crawlLogColumns+`
		FROM crawl_log
		ORDER BY subject_id, crawled_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest crawl logs")
	}
	defer rows.Close()

	latest := make(map[string]model.CrawlLogEntry)
	for rows.Next() {
		e, err := scanCrawlLog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan crawl log")
		}
		latest[e.SubjectID] = *e
	}
	return latest, eris.Wrap(rows.Err(), "postgres: latest crawl logs iterate")
}

func (s *PostgresStore) ListCrawlLog(ctx context.Context, filter CrawlLogFilter) ([]model.CrawlLogEntry, error) {
	query := `SELECT ` + crawlLogColumns + ` FROM crawl_log WHERE 1=1`
	var args []any

	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += ` AND subject_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY crawled_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list crawl log")
	}
	defer rows.Close()

	var entries []model.CrawlLogEntry
	for rows.Next() {
		e, err := scanCrawlLog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan crawl log")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list crawl log iterate")
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/store"
)

func newHandlerStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedPosition(t *testing.T, st store.Store, subjectID, topicSlug string, stance model.Stance) {
	t.Helper()
	require.NoError(t, st.UpsertPosition(context.Background(), model.Position{
		SubjectID:     subjectID,
		TopicID:       topicSlug,
		TopicSlug:     topicSlug,
		Summary:       "Summary for " + topicSlug,
		Detail:        "Detail for " + topicSlug,
		Stance:        stance,
		Strength:      model.StrengthModerate,
		Confidence:    0.7,
		SourceURL:     "https://example.org",
		SourceSection: "main",
		LastUpdated:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandlePositions(t *testing.T) {
	st := newHandlerStore(t)
	seedPosition(t, st, "sen-a", "healthcare", model.StanceSupport)
	seedPosition(t, st, "sen-a", "education", model.StanceOppose)
	seedPosition(t, st, "sen-b", "healthcare", model.StanceSupport)

	handler := handlePositions(st)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/positions?subject=sen-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var positions []model.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	assert.Len(t, positions, 2)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/positions?stance=oppose", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "education", positions[0].TopicSlug)
}

func TestHandlePositions_EmptyIsJSONArray(t *testing.T) {
	handler := handlePositions(newHandlerStore(t))

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/positions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandleCrawlLog(t *testing.T) {
	st := newHandlerStore(t)
	_, err := st.AppendCrawlLog(context.Background(), model.CrawlLogEntry{
		SubjectID:  "sen-a",
		SourceURL:  "https://example.org",
		Status:     model.CrawlStatusError,
		ErrorClass: model.ErrorClassForbidden,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handleCrawlLog(st)(rec, httptest.NewRequest(http.MethodGet, "/crawl-log?subject=sen-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []model.CrawlLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, model.ErrorClassForbidden, entries[0].ErrorClass)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=25&bad=oops&neg=-3", nil)
	assert.Equal(t, 25, queryInt(req, "limit", 100))
	assert.Equal(t, 100, queryInt(req, "missing", 100))
	assert.Equal(t, 100, queryInt(req, "bad", 100))
	assert.Equal(t, 100, queryInt(req, "neg", 100))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatPositions(t *testing.T) {
	var buf bytes.Buffer
	formatPositions(&buf, []model.Position{{
		SubjectID:   "sen-a",
		TopicSlug:   "healthcare",
		Stance:      model.StanceSupport,
		Strength:    model.StrengthStrong,
		Confidence:  0.85,
		IsKeyIssue:  true,
		LastUpdated: time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "sen-a")
	assert.Contains(t, out, "healthcare")
	assert.Contains(t, out, "support")
	assert.Contains(t, out, "0.85")
	assert.Contains(t, out, "yes")
}

func TestFormatCrawlLog(t *testing.T) {
	var buf bytes.Buffer
	formatCrawlLog(&buf, []model.CrawlLogEntry{{
		ID:             "0bdb74a1-9c0f-4d93-9f11-2c4a8f0b8e10",
		SubjectID:      "sen-a",
		Status:         model.CrawlStatusSuccess,
		PositionsFound: 3,
		Duration:       1250 * time.Millisecond,
		CrawledAt:      time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "0bdb74a1")
	assert.NotContains(t, out, "0bdb74a1-9c0f")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "1.25s")
}

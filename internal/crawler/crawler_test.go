package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclabs/stancewatch/internal/fetcher"
	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/scheduler"
	"github.com/civiclabs/stancewatch/internal/store"
	"github.com/civiclabs/stancewatch/internal/taxonomy"
)

const homepageHTML = `<html><body>
<main>
	<h1>Where I Stand</h1>
	I strongly support expanding Medicare for every family in this district.
	Healthcare is a right and I will always defend it for our seniors and
	working families who depend on it every single day.
</main>
<nav><a href="/issues/education">Education</a></nav>
</body></html>`

const educationHTML = `<html><body>
<main>
	I am committed to funding education and I support our teachers. Every
	student in this district deserves a fair shot at success, and I will
	fight for the resources our public schools need.
</main>
</body></html>`

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, homepageHTML)
	})
	mux.HandleFunc("/issues/education", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, educationHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestCrawler(t *testing.T, force bool) (*Crawler, store.Store) {
	t.Helper()

	tax, err := taxonomy.Load()
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	fetch := fetcher.New(fetcher.Options{
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
		Timeout:     2 * time.Second,
	})

	c := New(tax, fetch, st, scheduler.New(scheduler.DefaultWindows()), Options{
		SubjectDelay: time.Millisecond,
		PageDelay:    time.Millisecond,
		Force:        force,
	})
	return c, st
}

func TestRun_EndToEnd(t *testing.T) {
	srv := newSiteServer(t)
	c, st := newTestCrawler(t, false)
	ctx := context.Background()

	directory := []model.Subject{{ID: "sen-a", Name: "Alice Anders", Homepage: srv.URL}}

	summary, err := c.Run(ctx, directory)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Crawled)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.GreaterOrEqual(t, summary.PositionsFound, 2)

	healthcare, err := st.GetPosition(ctx, "sen-a", "healthcare")
	require.NoError(t, err)
	require.NotNil(t, healthcare)
	assert.Equal(t, model.StanceSupport, healthcare.Stance)
	assert.Equal(t, model.StrengthStrong, healthcare.Strength)

	education, err := st.GetPosition(ctx, "sen-a", "education")
	require.NoError(t, err)
	require.NotNil(t, education)
	assert.Equal(t, model.StanceSupport, education.Stance)

	entries, err := st.ListCrawlLog(ctx, store.CrawlLogFilter{SubjectID: "sen-a"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.CrawlStatusSuccess, entries[0].Status)
	assert.Equal(t, summary.PositionsFound, entries[0].PositionsFound)
}

func TestRun_SkipWindowThenForce(t *testing.T) {
	srv := newSiteServer(t)
	c, _ := newTestCrawler(t, false)
	ctx := context.Background()

	directory := []model.Subject{{ID: "sen-a", Name: "Alice Anders", Homepage: srv.URL}}

	first, err := c.Run(ctx, directory)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Crawled)

	// Inside the success window: nothing to do.
	second, err := c.Run(ctx, directory)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Eligible)
	assert.Equal(t, 0, second.Crawled)

	// Force ignores the window.
	c.opts.Force = true
	third, err := c.Run(ctx, directory)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Crawled)
}

func TestRun_FailureIsolatedPerSubject(t *testing.T) {
	good := newSiteServer(t)
	forbidden := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(forbidden.Close)

	c, st := newTestCrawler(t, false)
	ctx := context.Background()

	directory := []model.Subject{
		{ID: "sen-a", Name: "Alice Anders", Homepage: good.URL},
		{ID: "sen-b", Name: "Bob Brycen", Homepage: forbidden.URL},
	}

	summary, err := c.Run(ctx, directory)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Crawled)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	latest, err := st.LatestCrawlLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CrawlStatusSuccess, latest["sen-a"].Status)
	assert.Equal(t, model.CrawlStatusError, latest["sen-b"].Status)
	assert.Equal(t, model.ErrorClassForbidden, latest["sen-b"].ErrorClass)
	assert.NotEmpty(t, latest["sen-b"].ErrorDetail)
}

func TestRun_SubPageFailureDoesNotFailSubject(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, homepageHTML)
	})
	mux.HandleFunc("/issues/education", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, st := newTestCrawler(t, false)
	ctx := context.Background()

	summary, err := c.Run(ctx, []model.Subject{{ID: "sen-a", Name: "Alice Anders", Homepage: srv.URL}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	// Homepage positions still recorded despite the broken sub-page.
	healthcare, err := st.GetPosition(ctx, "sen-a", "healthcare")
	require.NoError(t, err)
	assert.NotNil(t, healthcare)
}

func TestCrawlSubject_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c, _ := newTestCrawler(t, false)

	entry := c.CrawlSubject(context.Background(), model.Subject{
		ID: "sen-a", Name: "Alice Anders", Homepage: srv.URL,
	})
	assert.Equal(t, model.CrawlStatusError, entry.Status)
	assert.Equal(t, model.ErrorClassOther, entry.ErrorClass)
	assert.Equal(t, "sen-a", entry.SubjectID)
	assert.Greater(t, entry.Duration, time.Duration(0))
}

func TestClassifyDoc_KeepsHigherConfidence(t *testing.T) {
	c, _ := newTestCrawler(t, false)
	subject := model.Subject{ID: "sen-a", Name: "Alice Anders"}

	weak := `<html><body><main>
		Medicare came up at the town hall and the senator said they support
		keeping an open mind about the program going forward this year.
	</main></body></html>`
	strong := `<html><body><main>
		I strongly support expanding Medicare and protecting healthcare for
		every working family, and I will always defend coverage for seniors.
	</main></body></html>`

	best := make(map[string]model.Position)

	weakDoc, err := goquery.NewDocumentFromReader(strings.NewReader(weak))
	require.NoError(t, err)
	c.classifyDoc(subject, weakDoc, "https://example.org/a", "", best)
	require.Contains(t, best, "healthcare")
	weakConf := best["healthcare"].Confidence

	strongDoc, err := goquery.NewDocumentFromReader(strings.NewReader(strong))
	require.NoError(t, err)
	c.classifyDoc(subject, strongDoc, "https://example.org/b", "", best)
	assert.Greater(t, best["healthcare"].Confidence, weakConf)
	assert.Equal(t, "https://example.org/b", best["healthcare"].SourceURL)

	// Re-presenting the weaker page must not displace the stronger result.
	c.classifyDoc(subject, weakDoc, "https://example.org/a", "", best)
	assert.Equal(t, "https://example.org/b", best["healthcare"].SourceURL)
}

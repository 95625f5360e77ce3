// Package crawler runs the policy-position pipeline: fetch a subject's
// homepage, extract and classify sections, discover policy sub-pages,
// classify those with their topic hints, persist positions, and append one
// crawl log entry per subject. Processing is strictly sequential; pacing
// between network calls is a politeness contract with target sites, not a
// concurrency primitive.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civiclabs/stancewatch/internal/classify"
	"github.com/civiclabs/stancewatch/internal/discover"
	"github.com/civiclabs/stancewatch/internal/extract"
	"github.com/civiclabs/stancewatch/internal/fetcher"
	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/scheduler"
	"github.com/civiclabs/stancewatch/internal/store"
	"github.com/civiclabs/stancewatch/internal/taxonomy"
)

// Options tunes the crawl pacing and batch size.
type Options struct {
	// SubjectDelay is the politeness gap between subjects. Default: 2s.
	SubjectDelay time.Duration
	// PageDelay is the politeness gap between a subject's sub-pages.
	// Default: 1s.
	PageDelay time.Duration
	// BatchLimit truncates the eligible set per run; 0 means no limit.
	BatchLimit int
	// Force ignores the scheduler's skip windows.
	Force bool
}

// Summary aggregates one run's outcome.
type Summary struct {
	Eligible       int `json:"eligible"`
	Crawled        int `json:"crawled"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	PositionsFound int `json:"positions_found"`
}

// Crawler wires the pipeline components. All of them are deterministic
// given the same fetched bytes; the store is the only mutable collaborator.
type Crawler struct {
	fetch      *fetcher.Fetcher
	discoverer *discover.Discoverer
	classifier *classify.Classifier
	analyzer   *classify.Analyzer
	sched      *scheduler.Scheduler
	st         store.Store
	opts       Options

	subjectPacer *rate.Limiter
	pagePacer    *rate.Limiter
}

// New creates a Crawler over the given taxonomy, fetcher, store, and
// scheduler.
func New(tax *taxonomy.Taxonomy, fetch *fetcher.Fetcher, st store.Store, sched *scheduler.Scheduler, opts Options) *Crawler {
	if opts.SubjectDelay <= 0 {
		opts.SubjectDelay = 2 * time.Second
	}
	if opts.PageDelay <= 0 {
		opts.PageDelay = time.Second
	}
	return &Crawler{
		fetch:        fetch,
		discoverer:   discover.New(tax),
		classifier:   classify.NewClassifier(tax),
		analyzer:     classify.NewAnalyzer(tax),
		sched:        sched,
		st:           st,
		opts:         opts,
		subjectPacer: rate.NewLimiter(rate.Every(opts.SubjectDelay), 1),
		pagePacer:    rate.NewLimiter(rate.Every(opts.PageDelay), 1),
	}
}

// Run crawls every eligible subject in order. Failure is isolated at
// subject granularity: a subject that errors is logged and the run moves
// on. Only store-level failures reading the crawl history abort the run.
func (c *Crawler) Run(ctx context.Context, directory []model.Subject) (*Summary, error) {
	latest, err := c.st.LatestCrawlLogs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "crawler: load crawl history")
	}

	eligible := directory
	if !c.opts.Force {
		eligible = c.sched.Eligible(directory, latest, time.Now().UTC(), c.opts.BatchLimit)
	} else if c.opts.BatchLimit > 0 && len(eligible) > c.opts.BatchLimit {
		eligible = eligible[:c.opts.BatchLimit]
	}

	summary := &Summary{Eligible: len(eligible)}
	zap.L().Info("crawler: run starting",
		zap.Int("directory", len(directory)),
		zap.Int("eligible", len(eligible)),
	)

	for _, subject := range eligible {
		if err := c.subjectPacer.Wait(ctx); err != nil {
			return summary, eris.Wrap(err, "crawler: run cancelled")
		}

		entry := c.CrawlSubject(ctx, subject)
		summary.Crawled++
		summary.PositionsFound += entry.PositionsFound
		if entry.Status == model.CrawlStatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		if _, err := c.st.AppendCrawlLog(ctx, entry); err != nil {
			zap.L().Error("crawler: failed to append crawl log",
				zap.String("subject", subject.ID),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("crawler: run complete",
		zap.Int("crawled", summary.Crawled),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("positions", summary.PositionsFound),
	)
	return summary, nil
}

// CrawlSubject processes one subject end to end and returns the single
// crawl log entry for the attempt. It never returns an error: every
// failure, including panics from malformed markup, becomes an error-status
// entry.
func (c *Crawler) CrawlSubject(ctx context.Context, subject model.Subject) (entry model.CrawlLogEntry) {
	start := time.Now()
	log := zap.L().With(zap.String("subject", subject.ID), zap.String("url", subject.Homepage))

	entry = model.CrawlLogEntry{
		SubjectID: subject.ID,
		SourceURL: subject.Homepage,
		CrawledAt: start.UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("crawler: panic while processing subject", zap.Any("panic", r))
			entry.Status = model.CrawlStatusError
			entry.ErrorClass = model.ErrorClassOther
			entry.ErrorDetail = fmt.Sprintf("panic: %v", r)
		}
		entry.Duration = time.Since(start)
	}()

	positions, fetchErr := c.crawlPages(ctx, subject, log)
	if fetchErr != nil {
		entry.Status = model.CrawlStatusError
		entry.ErrorClass = fetcher.Classify(fetchErr)
		entry.ErrorDetail = fetchErr.Error()
		log.Warn("crawler: subject crawl failed",
			zap.String("error_class", string(entry.ErrorClass)),
			zap.Error(fetchErr),
		)
		return entry
	}

	for _, p := range positions {
		if err := c.st.UpsertPosition(ctx, p); err != nil {
			entry.Status = model.CrawlStatusError
			entry.ErrorClass = model.ErrorClassOther
			entry.ErrorDetail = err.Error()
			return entry
		}
	}

	entry.Status = model.CrawlStatusSuccess
	entry.PositionsFound = len(positions)
	log.Info("crawler: subject crawl complete",
		zap.Int("positions", len(positions)),
		zap.Duration("duration", time.Since(start)),
	)
	return entry
}

// crawlPages fetches the homepage and discovered sub-pages, returning the
// best position per (subject, topic). A homepage failure fails the
// subject; sub-page failures are logged and skipped.
func (c *Crawler) crawlPages(ctx context.Context, subject model.Subject, log *zap.Logger) ([]model.Position, error) {
	page, err := c.fetch.Fetch(ctx, subject.Homepage)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, eris.Wrap(err, "crawler: parse homepage")
	}

	best := make(map[string]model.Position)
	c.classifyDoc(subject, doc, page.FinalURL, "", best)

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return positionsOf(best), nil
	}

	for _, candidate := range c.discoverer.Discover(doc, base) {
		if err := c.pagePacer.Wait(ctx); err != nil {
			return positionsOf(best), nil
		}

		sub, err := c.fetch.Fetch(ctx, candidate.URL)
		if err != nil {
			log.Debug("crawler: sub-page fetch failed",
				zap.String("sub_url", candidate.URL),
				zap.Error(err),
			)
			continue
		}
		subDoc, err := goquery.NewDocumentFromReader(strings.NewReader(sub.HTML))
		if err != nil {
			log.Debug("crawler: sub-page parse failed",
				zap.String("sub_url", candidate.URL),
				zap.Error(err),
			)
			continue
		}

		c.classifyDoc(subject, subDoc, sub.FinalURL, candidate.TopicHint, best)
	}

	return positionsOf(best), nil
}

// classifyDoc extracts sections from one document and folds emitted
// positions into best, keeping the higher-confidence position per topic.
// The store itself is latest-wins; confidence conflicts are resolved here,
// within the run, so a weak extraction from a later page cannot displace a
// stronger one from an earlier page of the same site.
func (c *Crawler) classifyDoc(subject model.Subject, doc *goquery.Document, sourceURL, topicHint string, best map[string]model.Position) {
	now := time.Now().UTC()
	for _, sec := range extract.Sections(doc) {
		matches := c.classifier.IdentifyWithHint(sec.Text, topicHint)
		for _, match := range matches {
			an := c.analyzer.Analyze(sec.Text, match.Topic)
			pos, ok := c.analyzer.Compose(subject, match, sec, an, sourceURL, now)
			if !ok {
				continue
			}
			if prev, exists := best[pos.TopicID]; !exists || pos.Confidence > prev.Confidence {
				best[pos.TopicID] = pos
			}
		}
	}
}

func positionsOf(best map[string]model.Position) []model.Position {
	if len(best) == 0 {
		return nil
	}
	out := make([]model.Position, 0, len(best))
	// Deterministic output order for logging and tests.
	for _, topicID := range sortedKeys(best) {
		out = append(out, best[topicID])
	}
	return out
}

func sortedKeys(m map[string]model.Position) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

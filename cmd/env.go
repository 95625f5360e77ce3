package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civiclabs/stancewatch/internal/crawler"
	"github.com/civiclabs/stancewatch/internal/fetcher"
	"github.com/civiclabs/stancewatch/internal/scheduler"
	"github.com/civiclabs/stancewatch/internal/store"
	"github.com/civiclabs/stancewatch/internal/taxonomy"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "stancewatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initScheduler() *scheduler.Scheduler {
	w := scheduler.DefaultWindows()
	if cfg.Schedule.SuccessHours > 0 {
		w.Success = time.Duration(cfg.Schedule.SuccessHours) * time.Hour
	}
	if cfg.Schedule.DNSFailureHours > 0 {
		w.DNSFailure = time.Duration(cfg.Schedule.DNSFailureHours) * time.Hour
	}
	if cfg.Schedule.ForbiddenHours > 0 {
		w.Forbidden = time.Duration(cfg.Schedule.ForbiddenHours) * time.Hour
	}
	if cfg.Schedule.OtherErrorHours > 0 {
		w.OtherError = time.Duration(cfg.Schedule.OtherErrorHours) * time.Hour
	}
	return scheduler.New(w)
}

func initFetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxAttempts:  cfg.Fetch.MaxAttempts,
		RetryDelay:   time.Duration(cfg.Fetch.RetryDelayMS) * time.Millisecond,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	})
}

func initCrawler(st store.Store, force bool, limit int) (*crawler.Crawler, error) {
	tax, err := taxonomy.Load()
	if err != nil {
		return nil, eris.Wrap(err, "load taxonomy")
	}

	batch := cfg.Crawl.BatchLimit
	if limit > 0 {
		batch = limit
	}

	return crawler.New(tax, initFetcher(), st, initScheduler(), crawler.Options{
		SubjectDelay: cfg.Crawl.SubjectDelay(),
		PageDelay:    cfg.Crawl.PageDelay(),
		BatchLimit:   batch,
		Force:        force,
	}), nil
}

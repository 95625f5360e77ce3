// Package scheduler decides which subjects are due for a (re)crawl based on
// each subject's most recent crawl log entry. Cooldowns are keyed by prior
// outcome: permanent-looking failures wait longest, access denial a week,
// transient failures a day, and healthy sources are revisited weekly.
package scheduler

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/civiclabs/stancewatch/internal/model"
)

// Windows holds the skip-window durations per outcome class.
type Windows struct {
	Success    time.Duration
	DNSFailure time.Duration
	Forbidden  time.Duration
	OtherError time.Duration
}

// DefaultWindows returns the production cooldowns.
func DefaultWindows() Windows {
	return Windows{
		Success:    7 * 24 * time.Hour,
		DNSFailure: 30 * 24 * time.Hour,
		Forbidden:  7 * 24 * time.Hour,
		OtherError: 24 * time.Hour,
	}
}

// Scheduler filters the subject directory against crawl history.
type Scheduler struct {
	windows Windows
}

// New creates a Scheduler with the given windows.
func New(windows Windows) *Scheduler {
	return &Scheduler{windows: windows}
}

// Eligible returns the subjects due for a crawl at time now, ordered
// alphabetically by name. latest maps subject id to that subject's most
// recent crawl log entry; subjects with no entry are always eligible.
// A limit > 0 truncates the result to a batch.
func (s *Scheduler) Eligible(subjects []model.Subject, latest map[string]model.CrawlLogEntry, now time.Time, limit int) []model.Subject {
	eligible := make([]model.Subject, 0, len(subjects))
	for _, subject := range subjects {
		entry, ok := latest[subject.ID]
		if !ok {
			eligible = append(eligible, subject)
			continue
		}
		if wait := s.window(entry); now.Sub(entry.CrawledAt) < wait {
			zap.L().Debug("scheduler: subject inside skip window",
				zap.String("subject", subject.ID),
				zap.String("status", string(entry.Status)),
				zap.String("error_class", string(entry.ErrorClass)),
				zap.Time("last_attempt", entry.CrawledAt),
			)
			continue
		}
		eligible = append(eligible, subject)
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].Name < eligible[j].Name
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible
}

func (s *Scheduler) window(entry model.CrawlLogEntry) time.Duration {
	if entry.Status == model.CrawlStatusSuccess {
		return s.windows.Success
	}
	switch entry.ErrorClass {
	case model.ErrorClassDNS:
		return s.windows.DNSFailure
	case model.ErrorClassForbidden:
		return s.windows.Forbidden
	default:
		return s.windows.OtherError
	}
}

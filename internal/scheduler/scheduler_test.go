package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/civiclabs/stancewatch/internal/model"
)

var (
	now      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	subjects = []model.Subject{
		{ID: "a", Name: "Alice Anders"},
		{ID: "b", Name: "Bob Brycen"},
		{ID: "c", Name: "Cara Cole"},
	}
)

func entryAt(status model.CrawlStatus, class model.ErrorClass, ago time.Duration) model.CrawlLogEntry {
	return model.CrawlLogEntry{Status: status, ErrorClass: class, CrawledAt: now.Add(-ago)}
}

func ids(subjects []model.Subject) []string {
	out := make([]string, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, s.ID)
	}
	return out
}

func TestEligible_NeverCrawledAlwaysEligible(t *testing.T) {
	s := New(DefaultWindows())
	got := s.Eligible(subjects, map[string]model.CrawlLogEntry{}, now, 0)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestEligible_SkipWindows(t *testing.T) {
	s := New(DefaultWindows())

	tests := []struct {
		name     string
		entry    model.CrawlLogEntry
		eligible bool
	}{
		{"success inside week", entryAt(model.CrawlStatusSuccess, model.ErrorClassNone, 6*24*time.Hour), false},
		{"success past week", entryAt(model.CrawlStatusSuccess, model.ErrorClassNone, 7*24*time.Hour), true},
		{"dns inside month", entryAt(model.CrawlStatusError, model.ErrorClassDNS, 29*24*time.Hour), false},
		{"dns past month", entryAt(model.CrawlStatusError, model.ErrorClassDNS, 30*24*time.Hour), true},
		{"forbidden inside week", entryAt(model.CrawlStatusError, model.ErrorClassForbidden, 3*24*time.Hour), false},
		{"forbidden past week", entryAt(model.CrawlStatusError, model.ErrorClassForbidden, 8*24*time.Hour), true},
		{"other error inside day", entryAt(model.CrawlStatusError, model.ErrorClassOther, 23*time.Hour), false},
		{"other error past day", entryAt(model.CrawlStatusError, model.ErrorClassOther, 25*time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latest := map[string]model.CrawlLogEntry{"a": tt.entry}
			tt.entry.SubjectID = "a"
			got := s.Eligible(subjects[:1], latest, now, 0)
			if tt.eligible {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestEligible_OrderedByName(t *testing.T) {
	s := New(DefaultWindows())
	shuffled := []model.Subject{subjects[2], subjects[0], subjects[1]}
	got := s.Eligible(shuffled, nil, now, 0)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestEligible_Limit(t *testing.T) {
	s := New(DefaultWindows())
	got := s.Eligible(subjects, nil, now, 2)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestEligible_MixedHistory(t *testing.T) {
	s := New(DefaultWindows())
	latest := map[string]model.CrawlLogEntry{
		"a": entryAt(model.CrawlStatusSuccess, model.ErrorClassNone, 2*24*time.Hour),
		"b": entryAt(model.CrawlStatusError, model.ErrorClassOther, 2*24*time.Hour),
	}
	got := s.Eligible(subjects, latest, now, 0)
	// a is inside its success window, b's transient cooldown has lapsed,
	// c has never been crawled.
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

// Package discover finds likely policy sub-pages among the links of a
// fetched page. A link is kept when its path or visible text matches either
// the generic policy-path fragments or a topic's discovery keywords; in the
// latter case the topic is attached as a hint for downstream classification.
package discover

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/civiclabs/stancewatch/internal/taxonomy"
)

// DefaultMaxCandidates bounds how many sub-pages one crawl visits.
const DefaultMaxCandidates = 15

// Candidate is a discovered sub-page URL with an optional topic hint. The
// hint biases later classification but never overrides it.
type Candidate struct {
	URL       string
	TopicHint string
}

// Discoverer matches page links against the taxonomy's keyword sets.
type Discoverer struct {
	tax           *taxonomy.Taxonomy
	maxCandidates int
}

// New creates a Discoverer over the given taxonomy.
func New(tax *taxonomy.Taxonomy) *Discoverer {
	return &Discoverer{tax: tax, maxCandidates: DefaultMaxCandidates}
}

// Discover returns an ordered, deduplicated list of candidate sub-page URLs
// found in doc. Links whose host differs from base are discarded; malformed
// hrefs are skipped without aborting the page.
func (d *Discoverer) Discover(doc *goquery.Document, base *url.URL) []Candidate {
	var candidates []Candidate
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(candidates) >= d.maxCandidates {
			return false
		}

		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return true
		}

		resolved, err := base.Parse(href)
		if err != nil {
			zap.L().Debug("discover: skipping malformed href",
				zap.String("href", href),
				zap.Error(err),
			)
			return true
		}
		if resolved.Host != base.Host {
			return true
		}

		resolved.Fragment = ""
		normalized := resolved.String()
		if seen[normalized] || normalized == base.String() {
			return true
		}

		path := strings.ToLower(resolved.Path)
		text := strings.ToLower(strings.TrimSpace(sel.Text()))

		hint, matched := d.match(path, text)
		if !matched {
			return true
		}

		seen[normalized] = true
		candidates = append(candidates, Candidate{URL: normalized, TopicHint: hint})
		return true
	})

	return candidates
}

// match tests a link's path and text against the keyword sets. Topic
// keyword sets are checked in fixed taxonomy order so the first matching
// topic is deterministic.
func (d *Discoverer) match(path, text string) (hint string, matched bool) {
	for _, topic := range d.tax.Topics() {
		for _, kw := range d.tax.KeywordsFor(topic.Slug) {
			if containsKeyword(path, kw) || containsKeyword(text, kw) {
				return topic.Slug, true
			}
		}
	}

	for _, frag := range d.tax.DiscoveryPaths() {
		if containsKeyword(path, frag) || containsKeyword(text, frag) {
			return "", true
		}
	}

	return "", false
}

// containsKeyword matches a keyword as a path-segment or word fragment
// rather than a bare substring, so "gas" does not match "gastronomy" but
// "/issues/gun-policy" matches "gun".
func containsKeyword(s, kw string) bool {
	idx := 0
	for {
		pos := strings.Index(s[idx:], kw)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(kw)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		idx = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Package extract ranks and selects candidate text sections from a fetched
// page. A fixed ordered list of structural queries is applied to the
// document; surviving matches are scored for policy relevance and
// structure, deduplicated, and truncated to a bounded set.
package extract

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/civiclabs/stancewatch/internal/model"
)

const (
	// MaxSections bounds how many sections one page contributes.
	MaxSections = 15
	// MinSectionLen and MaxSectionLen bound a section's extracted text.
	MinSectionLen = 100
	MaxSectionLen = 5000
	// dedupePrefixLen is how many leading characters decide two sections
	// are the same block reached through different selectors.
	dedupePrefixLen = 200
)

// sectionQueries is applied in order. Earlier queries target explicit
// policy containers, later ones generic content landmarks.
var sectionQueries = []string{
	"main",
	"[role='main']",
	"article",
	"section[class*='issue']",
	"section[id*='issue']",
	"div[class*='issue']",
	"div[id*='issue']",
	"section[class*='policy']",
	"div[class*='policy']",
	"div[id*='policy']",
	"section[class*='position']",
	"div[class*='position']",
	"section[class*='priorit']",
	"div[class*='priorit']",
	"div[class*='platform']",
	"section[class*='platform']",
	"div[class*='agenda']",
	"div[class*='stance']",
	"article[class*='post']",
	"div[class*='entry-content']",
	"div[class*='post-content']",
	"div[class*='page-content']",
	"div[class*='main-content']",
	"div#content",
	"div.content",
}

// keySectionKeywords score an element's attributes and text toward the
// isKeySection flag.
var keySectionKeywords = map[string]int{
	"issue":      3,
	"policy":     3,
	"position":   3,
	"priorit":    2,
	"platform":   2,
	"agenda":     2,
	"stance":     2,
	"plan":       1,
	"record":     1,
	"commitment": 1,
}

const keySectionThreshold = 3

// structuredChildren are the child element kinds that mark a section as
// structured content when more than two are present.
const structuredChildren = "ul, ol, h1, h2, h3, h4, h5, h6, p, li[class*='issue'], div[class*='issue-item'], div[class*='policy-item']"

// Sections extracts up to MaxSections ranked ContentSections from doc,
// highest relevance first.
func Sections(doc *goquery.Document) []model.ContentSection {
	var sections []model.ContentSection
	seen := make(map[string]bool)

	add := func(sec model.ContentSection) {
		n := len(sec.Text)
		if n < MinSectionLen || n > MaxSectionLen {
			return
		}
		prefix := sec.Text
		if len(prefix) > dedupePrefixLen {
			prefix = prefix[:dedupePrefixLen]
		}
		if seen[prefix] {
			return
		}
		seen[prefix] = true
		sections = append(sections, sec)
	}

	for _, query := range sectionQueries {
		doc.Find(query).Each(func(_ int, sel *goquery.Selection) {
			text := normalizeText(sel.Text())
			add(model.ContentSection{
				Selector:   query,
				Title:      sectionTitle(sel),
				Text:       text,
				IsKey:      isKeySection(query, sel, text),
				Structured: hasStructuredContent(sel),
			})
		})
	}

	// Meta description and title form a low-signal fallback section so a
	// page with no recognizable containers can still be classified.
	if meta := metaSection(doc); meta != nil {
		add(*meta)
	}

	stableSortByRank(sections)
	if len(sections) > MaxSections {
		sections = sections[:MaxSections]
	}
	return sections
}

func metaSection(doc *goquery.Document) *model.ContentSection {
	desc, _ := doc.Find(`meta[name="description"]`).Attr("content")
	title := normalizeText(doc.Find("title").First().Text())
	text := normalizeText(strings.TrimSpace(title + ". " + desc))
	if text == "" {
		return nil
	}
	return &model.ContentSection{
		Selector: "meta",
		Title:    title,
		Text:     text,
	}
}

func sectionTitle(sel *goquery.Selection) string {
	heading := sel.Find("h1, h2, h3").First().Text()
	return normalizeText(heading)
}

// isKeySection scores structural and lexical indicators. The main landmark
// is a key section unconditionally.
func isKeySection(query string, sel *goquery.Selection, text string) bool {
	if query == "main" || query == "[role='main']" {
		return true
	}

	score := 0
	attrs := strings.ToLower(attrString(sel))
	lowered := strings.ToLower(text)
	for kw, weight := range keySectionKeywords {
		if strings.Contains(attrs, kw) {
			score += weight * 2
		}
		if strings.Contains(lowered, kw) {
			score += weight
		}
	}
	return score >= keySectionThreshold
}

func attrString(sel *goquery.Selection) string {
	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")
	return class + " " + id
}

func hasStructuredContent(sel *goquery.Selection) bool {
	return sel.ChildrenFiltered(structuredChildren).Length() > 2
}

// stableSortByRank orders sections by descending rank without disturbing
// the query order of equally ranked sections.
func stableSortByRank(sections []model.ContentSection) {
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Rank() > sections[j].Rank()
	})
}

// normalizeText collapses runs of whitespace so selector-extracted text
// compares and truncates predictably.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

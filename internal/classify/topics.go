// Package classify maps extracted text sections onto the policy taxonomy
// and infers stance, strength, and confidence. Classification is lexical
// and fully deterministic: identical input text always yields identical
// output.
package classify

import (
	"strings"

	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/taxonomy"
)

// HintConfidence is assigned to a topic attached via link provenance when
// the topic's aliases did not match the body text. Link provenance is
// treated as strong prior evidence.
const HintConfidence = 0.9

// Classifier identifies taxonomy topics in free text by weighted substring
// alias matching.
type Classifier struct {
	tax *taxonomy.Taxonomy
}

// NewClassifier creates a Classifier over the given taxonomy.
func NewClassifier(tax *taxonomy.Taxonomy) *Classifier {
	return &Classifier{tax: tax}
}

// Identify returns every topic whose alias appears in text, in taxonomy
// order. A topic appears once with confidence equal to the maximum weight
// among its matched aliases; repeated synonym hits do not accumulate.
func (c *Classifier) Identify(text string) []model.TopicMatch {
	lowered := strings.ToLower(text)

	var matches []model.TopicMatch
	for _, topic := range c.tax.Topics() {
		best := 0.0
		for _, alias := range c.tax.AliasesFor(topic.Slug) {
			if alias.Weight > best && strings.Contains(lowered, alias.Text) {
				best = alias.Weight
			}
		}
		if best > 0 {
			matches = append(matches, model.TopicMatch{Topic: topic, Confidence: best})
		}
	}
	return matches
}

// IdentifyWithHint behaves like Identify but, when the section came from a
// discovered page carrying a topic hint, prepends the hinted topic at
// HintConfidence unless alias matching already found it.
func (c *Classifier) IdentifyWithHint(text, hintSlug string) []model.TopicMatch {
	matches := c.Identify(text)
	if hintSlug == "" {
		return matches
	}
	for _, m := range matches {
		if m.Topic.Slug == hintSlug {
			return matches
		}
	}
	topic, ok := c.tax.TopicBySlug(hintSlug)
	if !ok {
		return matches
	}
	return append([]model.TopicMatch{{Topic: topic, Confidence: HintConfidence}}, matches...)
}

package classify

import (
	"strings"
	"time"

	"github.com/civiclabs/stancewatch/internal/model"
)

// EmitThreshold gates position emission: both the topic match and the
// stance decision must clear it.
const EmitThreshold = 0.2

// maxDetailLen truncates the stored full-detail text.
const maxDetailLen = 2000

// keyIssueIndicators is the explicit priority/commitment language that
// flags a position as a key issue independent of detected strength.
var keyIssueIndicators = []string{
	"priority",
	"committed to",
	"will fight for",
	"will always fight",
	"dedicated to",
	"will never stop",
	"make no mistake",
}

// positionalIndicators are the verbs that make a sentence read as a stated
// position; used when selecting a summary without key phrases.
var positionalIndicators = []string{
	"support", "oppose", "believe", "fight", "will", "must",
	"protect", "expand", "end", "plan",
}

// Compose builds a Position from one classified section. It returns false
// when the emission gate fails: neutral stance, or either confidence at or
// below EmitThreshold. Stored confidence averages the topic-match weight
// and the stance confidence.
func (a *Analyzer) Compose(subject model.Subject, match model.TopicMatch, sec model.ContentSection, an Analysis, sourceURL string, now time.Time) (model.Position, bool) {
	if an.Stance == model.StanceNeutral {
		return model.Position{}, false
	}
	if minFloat(match.Confidence, an.Confidence) <= EmitThreshold {
		return model.Position{}, false
	}

	detail := sec.Text
	if len(detail) > maxDetailLen {
		detail = detail[:maxDetailLen]
	}

	return model.Position{
		SubjectID:     subject.ID,
		TopicID:       match.Topic.ID,
		TopicSlug:     match.Topic.Slug,
		Summary:       a.summarize(sec.Text, match.Topic, an),
		Detail:        detail,
		Stance:        an.Stance,
		Strength:      an.Strength,
		Confidence:    (match.Confidence + an.Confidence) / 2,
		IsKeyIssue:    isKeyIssue(sec.Text, an),
		KeyPhrases:    an.KeyPhrases,
		SourceURL:     sourceURL,
		SourceSection: sec.Selector,
		LastUpdated:   now,
	}, true
}

// isKeyIssue is true when the section carries explicit priority or
// commitment language, or the detected strength is strong.
func isKeyIssue(text string, an Analysis) bool {
	if an.Strength == model.StrengthStrong {
		return true
	}
	lowered := strings.ToLower(text)
	for _, ind := range keyIssueIndicators {
		if strings.Contains(lowered, ind) {
			return true
		}
	}
	return false
}

// summarize picks the position summary. Selection order: first extracted
// key phrase; a sentence with both a topic mention and a positional
// indicator; any sentence mentioning the topic; the section's first two
// sentences.
func (a *Analyzer) summarize(text string, topic model.Topic, an Analysis) string {
	if len(an.KeyPhrases) > 0 {
		return an.KeyPhrases[0]
	}

	sentences := SplitSentences(text)

	for _, s := range sentences {
		lowered := strings.ToLower(s)
		if a.mentionsTopic(lowered, topic) && containsAny(lowered, positionalIndicators) {
			return s
		}
	}
	for _, s := range sentences {
		if a.mentionsTopic(strings.ToLower(s), topic) {
			return s
		}
	}

	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	return strings.Join(sentences, " ")
}

func containsAny(lowered string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

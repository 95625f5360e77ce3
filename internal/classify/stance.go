package classify

import (
	"strings"

	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/taxonomy"
)

// Analysis is the stance decision for one (section, topic) pairing.
type Analysis struct {
	Stance     model.Stance
	Strength   model.Strength
	Confidence float64
	KeyPhrases []string
}

// maxKeyPhrases bounds how many evidence sentences accompany a stance.
const maxKeyPhrases = 3

// Analyzer infers stance, strength, and confidence from fixed lexicons:
// generic support/oppose phrases and strength intensifiers, plus optional
// per-topic lists that act as additive bonuses.
type Analyzer struct {
	tax *taxonomy.Taxonomy
}

// NewAnalyzer creates an Analyzer over the given taxonomy.
func NewAnalyzer(tax *taxonomy.Taxonomy) *Analyzer {
	return &Analyzer{tax: tax}
}

// Analyze scores text toward the topic. Confidence formulas:
//
//	support/oppose: min(0.9, 0.3 + 0.15·score + 0.1·strengthScore)
//	mixed:          min(0.7, 0.2 + 0.1·(supportScore+opposeScore))
//	neutral:        0.1
func (a *Analyzer) Analyze(text string, topic model.Topic) Analysis {
	lowered := strings.ToLower(text)
	lex := a.tax.Lexicon()

	supportPhrases := lex.Support
	opposePhrases := lex.Oppose
	if topicLex, ok := a.tax.StanceLexiconFor(topic.Slug); ok {
		supportPhrases = append(append([]string{}, supportPhrases...), topicLex.Support...)
		opposePhrases = append(append([]string{}, opposePhrases...), topicLex.Oppose...)
	}

	supportScore := countHits(lowered, supportPhrases)
	opposeScore := countHits(lowered, opposePhrases)
	strengthScore := countHits(lowered, lex.Intensifiers)

	an := Analysis{Strength: model.StrengthModerate}
	if strengthScore > 0 {
		an.Strength = model.StrengthStrong
	}

	switch {
	case supportScore > opposeScore:
		an.Stance = model.StanceSupport
		an.Confidence = clamp(0.3+0.15*float64(supportScore)+0.1*float64(strengthScore), 0.9)
	case opposeScore > supportScore:
		an.Stance = model.StanceOppose
		an.Confidence = clamp(0.3+0.15*float64(opposeScore)+0.1*float64(strengthScore), 0.9)
	case supportScore > 0:
		an.Stance = model.StanceMixed
		an.Confidence = clamp(0.2+0.1*float64(supportScore+opposeScore), 0.7)
	default:
		an.Stance = model.StanceNeutral
		an.Confidence = 0.1
	}

	if an.Stance == model.StanceSupport || an.Stance == model.StanceOppose {
		directional := supportPhrases
		if an.Stance == model.StanceOppose {
			directional = opposePhrases
		}
		an.KeyPhrases = a.keyPhrases(text, topic, directional)
	}

	return an
}

// keyPhrases returns up to maxKeyPhrases sentences, in document order, that
// mention the topic and contain a phrase of the detected stance direction.
func (a *Analyzer) keyPhrases(text string, topic model.Topic, directional []string) []string {
	var phrases []string
	for _, sentence := range SplitSentences(text) {
		if len(phrases) >= maxKeyPhrases {
			break
		}
		if len(sentence) <= 20 {
			continue
		}
		lowered := strings.ToLower(sentence)
		if !a.mentionsTopic(lowered, topic) {
			continue
		}
		if countHits(lowered, directional) == 0 {
			continue
		}
		phrases = append(phrases, sentence)
	}
	return phrases
}

// mentionsTopic tests a lowered sentence against the topic's aliases and
// its broader discovery keywords.
func (a *Analyzer) mentionsTopic(lowered string, topic model.Topic) bool {
	for _, alias := range a.tax.AliasesFor(topic.Slug) {
		if strings.Contains(lowered, alias.Text) {
			return true
		}
	}
	for _, kw := range a.tax.KeywordsFor(topic.Slug) {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// SplitSentences splits text on sentence terminators. Empty fragments are
// dropped; surviving sentences keep document order.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// countHits counts how many distinct phrases appear in the lowered text.
// Each phrase contributes at most once regardless of repetition.
func countHits(lowered string, phrases []string) int {
	hits := 0
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			hits++
		}
	}
	return hits
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

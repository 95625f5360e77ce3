package model

import "time"

// Stance is the inferred polarity of a passage toward a topic.
type Stance string

const (
	StanceSupport Stance = "support"
	StanceOppose  Stance = "oppose"
	StanceMixed   Stance = "mixed"
	StanceNeutral Stance = "neutral"
)

// Strength records whether intensifying language accompanied the stance.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
)

// Position is a classified policy position for one (subject, topic) pair.
// At most one Position is stored per pair; a later successful classification
// replaces an earlier one.
type Position struct {
	SubjectID     string    `json:"subject_id"`
	TopicID       string    `json:"topic_id"`
	TopicSlug     string    `json:"topic_slug"`
	Summary       string    `json:"summary"`
	Detail        string    `json:"detail"`
	Stance        Stance    `json:"stance"`
	Strength      Strength  `json:"strength"`
	Confidence    float64   `json:"confidence"`
	IsKeyIssue    bool      `json:"is_key_issue"`
	KeyPhrases    []string  `json:"key_phrases,omitempty"`
	SourceURL     string    `json:"source_url"`
	SourceSection string    `json:"source_section"`
	LastUpdated   time.Time `json:"last_updated"`
}

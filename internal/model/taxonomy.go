package model

// Topic is a canonical policy taxonomy entry. Topics are bootstrapped once
// from seed data and treated as immutable configuration afterwards.
type Topic struct {
	ID          string `json:"id" yaml:"id"`
	Slug        string `json:"slug" yaml:"slug"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Description string `json:"description" yaml:"description"`
	ParentSlug  string `json:"parent_slug,omitempty" yaml:"parent,omitempty"`
}

// Alias is a weighted synonym string used for substring-based topic
// matching. Canonical and display names carry weight 1.0, synonyms 0.8.
type Alias struct {
	Text   string  `json:"text" yaml:"text"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// TopicMatch is one topic identified in a text section, with the maximum
// weight among its matched aliases as confidence.
type TopicMatch struct {
	Topic      Topic   `json:"topic"`
	Confidence float64 `json:"confidence"`
}

package model

// ContentSection is a candidate text passage extracted from one page.
// Sections are transient: they exist only while a single fetch is being
// classified and are never persisted.
type ContentSection struct {
	Selector   string `json:"selector"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text"`
	IsKey      bool   `json:"is_key"`
	Structured bool   `json:"structured"`
}

// Rank orders sections within one page: key sections dominate, structured
// content breaks ties.
func (s ContentSection) Rank() int {
	rank := 0
	if s.IsKey {
		rank += 2
	}
	if s.Structured {
		rank++
	}
	return rank
}

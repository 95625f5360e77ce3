package model

// Subject is an office-holder tracked by the system. The subject directory
// is owned by an external collaborator and is read-only to the crawler.
type Subject struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Homepage string `json:"homepage" yaml:"homepage"`
}

// Package subjects loads the subject directory: the externally owned list
// of office-holders and their homepages. The directory is read-only input
// to the crawler.
package subjects

import (
	"net/url"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/civiclabs/stancewatch/internal/model"
)

type directoryFile struct {
	Subjects []model.Subject `yaml:"subjects"`
}

// LoadFile reads a subject directory YAML file, validates each entry, and
// returns the subjects sorted by name.
func LoadFile(path string) ([]model.Subject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "subjects: read %s", path)
	}
	return Parse(data)
}

// Parse validates and sorts a subject directory document.
func Parse(data []byte) ([]model.Subject, error) {
	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "subjects: parse directory")
	}
	if len(file.Subjects) == 0 {
		return nil, eris.New("subjects: directory is empty")
	}

	seen := make(map[string]bool, len(file.Subjects))
	for _, s := range file.Subjects {
		if s.ID == "" || s.Name == "" {
			return nil, eris.Errorf("subjects: entry %q missing id or name", s.ID+s.Name)
		}
		if seen[s.ID] {
			return nil, eris.Errorf("subjects: duplicate id %q", s.ID)
		}
		seen[s.ID] = true

		u, err := url.Parse(s.Homepage)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, eris.Errorf("subjects: %s has invalid homepage %q", s.ID, s.Homepage)
		}
	}

	sorted := append([]model.Subject(nil), file.Subjects...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted, nil
}

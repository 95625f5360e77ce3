// Package taxonomy loads the seed policy taxonomy: canonical topics,
// weighted matching aliases, page-discovery keywords, and the stance
// lexicons. The registry is immutable after load and passed explicitly to
// the classifier and analyzer so they can be tested in isolation.
package taxonomy

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/civiclabs/stancewatch/internal/model"
)

//go:embed seed.yaml
var seedYAML []byte

// Lexicon holds the generic stance phrase lists shared by all topics.
type Lexicon struct {
	Support      []string `yaml:"support"`
	Oppose       []string `yaml:"oppose"`
	Intensifiers []string `yaml:"intensifiers"`
}

// StanceLexicon holds the optional per-topic additive phrase lists. Only a
// subset of topics define one; the rest rely on the generic lexicon alone.
type StanceLexicon struct {
	Support []string
	Oppose  []string
}

type seedTopic struct {
	ID                string        `yaml:"id"`
	Slug              string        `yaml:"slug"`
	DisplayName       string        `yaml:"display_name"`
	Description       string        `yaml:"description"`
	Parent            string        `yaml:"parent"`
	Aliases           []model.Alias `yaml:"aliases"`
	DiscoveryKeywords []string      `yaml:"discovery_keywords"`
	SupportPhrases    []string      `yaml:"support_phrases"`
	OpposePhrases     []string      `yaml:"oppose_phrases"`
}

type seedFile struct {
	DiscoveryPaths []string    `yaml:"discovery_paths"`
	Lexicon        Lexicon     `yaml:"lexicon"`
	Topics         []seedTopic `yaml:"topics"`
}

// Taxonomy is the loaded, immutable topic registry. Topics keep seed-file
// order so every iteration over them is deterministic.
type Taxonomy struct {
	topics         []model.Topic
	aliases        map[string][]model.Alias
	keywords       map[string][]string
	stanceLexicons map[string]StanceLexicon
	discoveryPaths []string
	lexicon        Lexicon
}

// Load parses the embedded seed file.
func Load() (*Taxonomy, error) {
	return Parse(seedYAML)
}

// Parse builds a Taxonomy from seed YAML. Exposed for tests that exercise
// reduced or custom taxonomies.
func Parse(data []byte) (*Taxonomy, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse seed")
	}
	if len(seed.Topics) == 0 {
		return nil, eris.New("taxonomy: seed contains no topics")
	}

	tx := &Taxonomy{
		aliases:        make(map[string][]model.Alias, len(seed.Topics)),
		keywords:       make(map[string][]string, len(seed.Topics)),
		stanceLexicons: make(map[string]StanceLexicon),
		discoveryPaths: seed.DiscoveryPaths,
		lexicon:        seed.Lexicon,
	}

	seen := make(map[string]bool, len(seed.Topics))
	for _, st := range seed.Topics {
		if st.Slug == "" {
			return nil, eris.Errorf("taxonomy: topic %q has no slug", st.DisplayName)
		}
		if seen[st.Slug] {
			return nil, eris.Errorf("taxonomy: duplicate topic slug %q", st.Slug)
		}
		seen[st.Slug] = true

		topic := model.Topic{
			ID:          st.ID,
			Slug:        st.Slug,
			DisplayName: st.DisplayName,
			Description: st.Description,
			ParentSlug:  st.Parent,
		}
		if topic.ID == "" {
			topic.ID = topic.Slug
		}
		tx.topics = append(tx.topics, topic)

		aliases := make([]model.Alias, 0, len(st.Aliases))
		for _, a := range st.Aliases {
			if a.Text == "" {
				continue
			}
			if a.Weight <= 0 || a.Weight > 1 {
				return nil, eris.Errorf("taxonomy: alias %q of %s has weight %v outside (0,1]", a.Text, st.Slug, a.Weight)
			}
			aliases = append(aliases, model.Alias{Text: strings.ToLower(a.Text), Weight: a.Weight})
		}
		tx.aliases[topic.Slug] = aliases
		tx.keywords[topic.Slug] = lowerAll(st.DiscoveryKeywords)

		if len(st.SupportPhrases) > 0 || len(st.OpposePhrases) > 0 {
			tx.stanceLexicons[topic.Slug] = StanceLexicon{
				Support: lowerAll(st.SupportPhrases),
				Oppose:  lowerAll(st.OpposePhrases),
			}
		}
	}

	return tx, nil
}

// Topics returns all topics in seed order.
func (t *Taxonomy) Topics() []model.Topic {
	return t.topics
}

// TopicBySlug looks up a topic by its canonical slug.
func (t *Taxonomy) TopicBySlug(slug string) (model.Topic, bool) {
	for _, topic := range t.topics {
		if topic.Slug == slug {
			return topic, true
		}
	}
	return model.Topic{}, false
}

// AliasesFor returns the weighted matching aliases of a topic.
func (t *Taxonomy) AliasesFor(slug string) []model.Alias {
	return t.aliases[slug]
}

// KeywordsFor returns the broader discovery keyword fragments of a topic.
func (t *Taxonomy) KeywordsFor(slug string) []string {
	return t.keywords[slug]
}

// StanceLexiconFor returns the per-topic additive stance lexicon, if the
// topic defines one.
func (t *Taxonomy) StanceLexiconFor(slug string) (StanceLexicon, bool) {
	lex, ok := t.stanceLexicons[slug]
	return lex, ok
}

// DiscoveryPaths returns the generic policy-page path fragments.
func (t *Taxonomy) DiscoveryPaths() []string {
	return t.discoveryPaths
}

// Lexicon returns the generic stance lexicon.
func (t *Taxonomy) Lexicon() Lexicon {
	return t.lexicon
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

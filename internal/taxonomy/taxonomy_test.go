package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SeedTaxonomy(t *testing.T) {
	tax, err := Load()
	require.NoError(t, err)

	topics := tax.Topics()
	require.NotEmpty(t, topics)

	// Seed order must be stable: healthcare is the first topic.
	assert.Equal(t, "healthcare", topics[0].Slug)

	seen := make(map[string]bool)
	for _, topic := range topics {
		assert.NotEmpty(t, topic.Slug)
		assert.NotEmpty(t, topic.DisplayName)
		assert.False(t, seen[topic.Slug], "duplicate slug %s", topic.Slug)
		seen[topic.Slug] = true

		aliases := tax.AliasesFor(topic.Slug)
		require.NotEmpty(t, aliases, "topic %s has no aliases", topic.Slug)
		for _, a := range aliases {
			assert.Greater(t, a.Weight, 0.0)
			assert.LessOrEqual(t, a.Weight, 1.0)
		}
	}
}

func TestLoad_Lexicon(t *testing.T) {
	tax, err := Load()
	require.NoError(t, err)

	lex := tax.Lexicon()
	assert.NotEmpty(t, lex.Support)
	assert.NotEmpty(t, lex.Oppose)
	assert.NotEmpty(t, lex.Intensifiers)
	assert.Contains(t, lex.Intensifiers, "strongly")
	assert.NotEmpty(t, tax.DiscoveryPaths())
}

func TestLoad_TopicStanceLexicons(t *testing.T) {
	tax, err := Load()
	require.NoError(t, err)

	lex, ok := tax.StanceLexiconFor("healthcare")
	require.True(t, ok)
	assert.NotEmpty(t, lex.Support)

	// Topics without per-topic phrases fall back to the generic lexicon only.
	_, ok = tax.StanceLexiconFor("veterans")
	assert.False(t, ok)
}

func TestTopicBySlug(t *testing.T) {
	tax, err := Load()
	require.NoError(t, err)

	topic, ok := tax.TopicBySlug("education")
	require.True(t, ok)
	assert.Equal(t, "Education", topic.DisplayName)

	_, ok = tax.TopicBySlug("nonexistent")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no topics", `discovery_paths: [issues]`},
		{"missing slug", `
topics:
  - display_name: Broken
    aliases: [{ text: broken, weight: 1.0 }]`},
		{"duplicate slug", `
topics:
  - slug: a
    display_name: A
  - slug: a
    display_name: A again`},
		{"weight out of range", `
topics:
  - slug: a
    display_name: A
    aliases: [{ text: a, weight: 1.5 }]`},
		{"zero weight", `
topics:
  - slug: a
    display_name: A
    aliases: [{ text: a, weight: 0 }]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_AliasesLowercased(t *testing.T) {
	tax, err := Parse([]byte(`
topics:
  - slug: energy
    display_name: Energy
    aliases:
      - { text: Clean Energy, weight: 0.8 }`))
	require.NoError(t, err)

	aliases := tax.AliasesFor("energy")
	require.Len(t, aliases, 1)
	assert.Equal(t, "clean energy", aliases[0].Text)
}

func TestParse_IDDefaultsToSlug(t *testing.T) {
	tax, err := Parse([]byte(`
topics:
  - slug: housing
    display_name: Housing`))
	require.NoError(t, err)

	topic, ok := tax.TopicBySlug("housing")
	require.True(t, ok)
	assert.Equal(t, "housing", topic.ID)
}

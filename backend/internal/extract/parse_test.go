package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notegraph/backend/internal/knowledge"
)

func TestParseEntities(t *testing.T) {
	raw := "```json\n" + `[
		{"name": "GPT-4", "type": "Technology", "context": "GPT-4 was created by OpenAI"},
		{"name": "OpenAI", "type": "organization"},
		{"name": "", "type": "concept"},
		{"name": "Mars", "type": "planet"},
		"not an object"
	]` + "\n```"

	got, err := ParseEntities(raw, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, knowledge.EntityCandidate{
		Name:    "GPT-4",
		Type:    knowledge.EntityTechnology,
		Context: "GPT-4 was created by OpenAI",
	}, got[0])
	assert.Equal(t, knowledge.EntityOrganization, got[1].Type)
}

func TestParseEntities_WrappedObject(t *testing.T) {
	raw := `Here you go: {"entities": [{"name": "Unix", "type": "concept"}]}`

	got, err := ParseEntities(raw, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Unix", got[0].Name)
}

func TestParseEntities_Cap(t *testing.T) {
	raw := `[
		{"name": "A", "type": "concept"},
		{"name": "B", "type": "concept"},
		{"name": "C", "type": "concept"}
	]`

	got, err := ParseEntities(raw, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseEntities_NotJSON(t *testing.T) {
	_, err := ParseEntities("I could not find any entities.", 5)
	assert.Error(t, err)

	got, err := ParseEntities("   ", 5)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseRelationships(t *testing.T) {
	entities := []knowledge.EntityCandidate{
		{Name: "GPT-4", Type: knowledge.EntityTechnology},
		{Name: "OpenAI", Type: knowledge.EntityOrganization},
	}
	raw := `[
		{"source": "gpt-4", "target": "OpenAI", "type": "created_by"},
		{"source": "GPT-4", "target": "Llama", "type": "contrasts_with"},
		{"source": "GPT-4", "target": "GPT-4", "type": "builds_on"},
		{"source": "GPT-4", "target": "OpenAI", "type": "related_to"}
	]`

	got, err := ParseRelationships(raw, entities, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, knowledge.RelationshipCandidate{
		Source: "gpt-4",
		Target: "OpenAI",
		Type:   knowledge.RelCreatedBy,
	}, got[0])
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[1]`, stripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFence("  [1] "))
}

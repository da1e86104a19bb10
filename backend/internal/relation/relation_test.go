package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
)

func recordWith(names map[string]string) *store.EntityRecord {
	rec := store.NewEntityRecord()
	for id, name := range names {
		rec.Entities[id] = &knowledge.Entity{ID: id, Name: name, Type: knowledge.EntityConcept}
	}
	return rec
}

func TestInferHierarchy_CompoundToRoot(t *testing.T) {
	rec := recordWith(map[string]string{"u": "unix", "up": "unix-philosophy"})

	added := InferHierarchy(rec)

	require.Equal(t, 1, added)
	rel := rec.Relationships[0]
	assert.Equal(t, "up", rel.SourceEntityID)
	assert.Equal(t, "u", rel.TargetEntityID)
	assert.Equal(t, "unix-philosophy", rel.SourceEntityName)
	assert.Equal(t, "unix", rel.TargetEntityName)
	assert.Equal(t, knowledge.RelSpecializationOf, rel.Type)
	assert.True(t, rel.AutoGenerated)
	assert.False(t, rel.Bidirectional)
	assert.Empty(t, rel.SourceNoteID)
}

func TestInferHierarchy_Idempotent(t *testing.T) {
	rec := recordWith(map[string]string{"u": "unix", "up": "unix-philosophy"})

	assert.Equal(t, 1, InferHierarchy(rec))
	assert.Equal(t, 0, InferHierarchy(rec))
	assert.Len(t, rec.Relationships, 1)
}

func TestInferHierarchy_Separators(t *testing.T) {
	rec := recordWith(map[string]string{
		"r":  "Rust",
		"ra": "rust_async",
		"rb": "Rust Borrow Checker",
		"go": "Go",
		"x":  "Gopher", // no separator, not a compound
		"z":  "-leading",
	})

	added := InferHierarchy(rec)

	assert.Equal(t, 2, added)
	for _, rel := range rec.Relationships {
		assert.Equal(t, "r", rel.TargetEntityID)
	}
}

func TestInferHierarchy_RootMustExist(t *testing.T) {
	rec := recordWith(map[string]string{"up": "unix-philosophy"})
	assert.Equal(t, 0, InferHierarchy(rec))
}

func TestAcceptor_Accept(t *testing.T) {
	rec := recordWith(map[string]string{"g": "GPT-4", "o": "OpenAI", "t": "Transformers"})
	idx := NewIndex(rec)
	resolved := map[string]string{"gpt-4": "g", "openai": "o", "open ai": "o", "transformers": "t"}

	a := NewAcceptor(3)
	added := a.Accept(rec, idx, []knowledge.RelationshipCandidate{
		{Source: "GPT-4", Target: "Open AI", Type: knowledge.RelCreatedBy},
		{Source: "GPT-4", Target: "OpenAI", Type: knowledge.RelCreatedBy}, // duplicate triple
		{Source: "GPT-4", Target: "Llama", Type: knowledge.RelBuildsOn},   // unknown endpoint
	}, resolved, "c2", "n1")

	require.Equal(t, 1, added)
	rel := rec.Relationships[0]
	assert.Equal(t, "g", rel.SourceEntityID)
	assert.Equal(t, "o", rel.TargetEntityID)
	assert.Equal(t, "c2", rel.SourceConversationID)
	assert.Equal(t, "n1", rel.SourceNoteID)
	assert.False(t, rel.AutoGenerated)
}

func TestAcceptor_RulesOut(t *testing.T) {
	rec := recordWith(map[string]string{"a": "Alpha", "b": "Beta", "c": "Gamma", "d": "Delta"})
	idx := NewIndex(rec)
	resolved := map[string]string{"alpha": "a", "beta": "b", "gamma": "c", "delta": "d", "alfa": "a"}

	a := NewAcceptor(3)
	added := a.Accept(rec, idx, []knowledge.RelationshipCandidate{
		{Source: "Alpha", Target: "Alfa", Type: knowledge.RelBuildsOn},        // self after resolution
		{Source: "Alpha", Target: "Beta", Type: "related_to"},                 // unknown type
		{Source: "Beta", Target: "Gamma", Type: knowledge.RelContrastsWith},   // kept
		{Source: "Gamma", Target: "Delta", Type: knowledge.RelAppliesTo},      // beyond the cap
	}, resolved, "c1", "n1")

	require.Equal(t, 1, added)
	assert.True(t, rec.Relationships[0].Bidirectional)
}

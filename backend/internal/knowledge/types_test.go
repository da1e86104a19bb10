package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notegraph/backend/internal/constants"
)

func TestParseEntityType(t *testing.T) {
	got, err := ParseEntityType(" Technology ")
	require.NoError(t, err)
	assert.Equal(t, EntityTechnology, got)

	_, err = ParseEntityType("place")
	assert.Error(t, err)
}

func TestParseRelationshipType(t *testing.T) {
	got, err := ParseRelationshipType("CREATED_BY")
	require.NoError(t, err)
	assert.Equal(t, RelCreatedBy, got)
	assert.False(t, got.IsBidirectional())
	assert.True(t, RelContrastsWith.IsBidirectional())

	_, err = ParseRelationshipType("related_to")
	assert.Error(t, err)
}

func TestEntity_AddMentionIsIdempotentPerNote(t *testing.T) {
	e := &Entity{ID: "e1", Name: "GPT-4", Type: EntityTechnology}

	assert.True(t, e.AddMention(Mention{ConversationID: "c1", NoteID: "n1", Context: "first"}))
	assert.False(t, e.AddMention(Mention{ConversationID: "c1", NoteID: "n1", Context: "again"}))
	assert.True(t, e.AddMention(Mention{ConversationID: "c2", NoteID: "n1"}))

	assert.Len(t, e.Mentions, 2)
	assert.Equal(t, "first", e.Mentions[0].Context)
}

func TestNodeIDs(t *testing.T) {
	assert.Equal(t, "note:c1:n1", NoteNodeID("c1", "n1"))
	assert.Equal(t, "source:c1", SourceNodeID("c1"))

	id, ok := ParseEntityNodeID(EntityNodeID("ab12cd34"))
	assert.True(t, ok)
	assert.Equal(t, "ab12cd34", id)

	_, ok = ParseEntityNodeID("note:c1:n1")
	assert.False(t, ok)

	assert.Len(t, NewEntityID(), constants.EntityIDLength)
	assert.NotEqual(t, NewID(), NewID())
}

func TestRedirects_FollowChains(t *testing.T) {
	r := BuildRedirects([]EntityMerge{
		{Canonical: "b", Merged: []string{"a"}},
		{Canonical: "c", Merged: []string{"b", "x"}},
	})

	assert.Equal(t, "c", r.Resolve("a"))
	assert.Equal(t, "c", r.Resolve("x"))
	assert.Equal(t, "live", r.Resolve("live"))
	assert.Equal(t, "entity:c", r.ResolveNode("entity:a"))
	assert.Equal(t, "note:c1:n1", r.ResolveNode("note:c1:n1"))
}

package related

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notegraph/backend/internal/graph"
	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
)

func mention(conv, note string) knowledge.Mention {
	return knowledge.Mention{ConversationID: conv, NoteID: note}
}

// sampleGraph is the three-note corpus: N1 and N2 share GPT-4 and #ml across
// sources, N3 is unrelated
func sampleGraph() *graph.Graph {
	sources := []knowledge.Source{
		{ID: "c1", Notes: []knowledge.Note{{NoteID: "n1", Title: "Transformers enable GPT-4", Tags: []string{"#ml"}}}},
		{ID: "c2", Notes: []knowledge.Note{{NoteID: "n2", Title: "GPT-4 was created by OpenAI", Tags: []string{"#ml"}}}},
		{ID: "c3", Notes: []knowledge.Note{{NoteID: "n3", Title: "Unrelated topic", Tags: []string{"#cooking"}}}},
	}
	rec := store.NewEntityRecord()
	rec.Entities["t"] = &knowledge.Entity{ID: "t", Name: "Transformers", Type: knowledge.EntityTechnology, Mentions: []knowledge.Mention{mention("c1", "n1")}}
	rec.Entities["g"] = &knowledge.Entity{ID: "g", Name: "GPT-4", Type: knowledge.EntityTechnology, Mentions: []knowledge.Mention{mention("c1", "n1"), mention("c2", "n2")}}
	rec.Entities["o"] = &knowledge.Entity{ID: "o", Name: "OpenAI", Type: knowledge.EntityOrganization, Mentions: []knowledge.Mention{mention("c2", "n2")}}
	rec.Relationships = []*knowledge.Relationship{
		{ID: "r1", SourceEntityID: "g", TargetEntityID: "o", Type: knowledge.RelCreatedBy},
		{ID: "r2", SourceEntityID: "g", TargetEntityID: "t", Type: knowledge.RelEnabledBy},
	}
	return graph.Assemble(sources, rec, nil)
}

func TestFind_SampleEndToEnd(t *testing.T) {
	res := Find(sampleGraph(), "note:c1:n1")

	require.True(t, res.Found)
	assert.Equal(t, "n1", res.Note.NoteID)
	assert.Equal(t, 1, res.TotalConnections)

	require.Len(t, res.Related.SharedEntity, 1)
	n2 := res.Related.SharedEntity[0]
	assert.Equal(t, "note:c2:n2", n2.ID)
	assert.Equal(t, 10, n2.Score)
	assert.Equal(t, "GPT-4", n2.Path.Entity)
	assert.Equal(t, "Both discuss 'GPT-4'", n2.Explanation)

	assert.Empty(t, res.Related.SharedTag, "best score wins, no duplicate under shared_tag")
	assert.Empty(t, res.Related.ViaRelationship)
	assert.Empty(t, res.Related.SameSource)
}

func TestFind_AcceptsNoteKey(t *testing.T) {
	res := Find(sampleGraph(), "c2:n2")
	require.True(t, res.Found)
	assert.Equal(t, "note:c2:n2", res.Note.ID)
}

func TestFind_NotFound(t *testing.T) {
	res := Find(sampleGraph(), "note:c9:nope")
	assert.False(t, res.Found)
	assert.Nil(t, res.Note)

	res = Find(sampleGraph(), "source:c1")
	assert.False(t, res.Found)
}

func TestFind_ViaRelationship(t *testing.T) {
	sources := []knowledge.Source{
		{ID: "a", Notes: []knowledge.Note{{NoteID: "1", Title: "unix philosophy"}}},
		{ID: "b", Notes: []knowledge.Note{{NoteID: "1", Title: "unix history"}}},
	}
	rec := store.NewEntityRecord()
	rec.Entities["up"] = &knowledge.Entity{ID: "up", Name: "unix-philosophy", Mentions: []knowledge.Mention{mention("a", "1")}}
	rec.Entities["u"] = &knowledge.Entity{ID: "u", Name: "unix", Mentions: []knowledge.Mention{mention("b", "1")}}
	rec.Relationships = []*knowledge.Relationship{
		{ID: "r", SourceEntityID: "up", TargetEntityID: "u", Type: knowledge.RelSpecializationOf, AutoGenerated: true},
	}
	g := graph.Assemble(sources, rec, nil)

	fromCompound := Find(g, "note:a:1")
	require.Len(t, fromCompound.Related.ViaRelationship, 1)
	r := fromCompound.Related.ViaRelationship[0]
	assert.Equal(t, 7, r.Score)
	assert.True(t, r.Path.OriginIsSource)
	assert.Equal(t, "unix-philosophy", r.Path.FromEntity)
	assert.Equal(t, "unix", r.Path.ToEntity)
	assert.Equal(t, "Covers 'unix', the broader idea behind 'unix-philosophy'", r.Explanation)

	fromRoot := Find(g, "note:b:1")
	require.Len(t, fromRoot.Related.ViaRelationship, 1)
	r = fromRoot.Related.ViaRelationship[0]
	assert.False(t, r.Path.OriginIsSource)
	assert.Equal(t, "Covers 'unix-philosophy', a specialization of 'unix'", r.Explanation)
}

func TestFind_SequentialAndSameSource(t *testing.T) {
	sources := []knowledge.Source{
		{ID: "s", Notes: []knowledge.Note{
			{NoteID: "0", Title: "zero", SequenceIndex: 0, Tags: []string{"x"}},
			{NoteID: "1", Title: "one", SequenceIndex: 1},
			{NoteID: "2", Title: "two", SequenceIndex: 2},
			{NoteID: "3", Title: "three", SequenceIndex: 3, Tags: []string{"x"}},
			{NoteID: "4", Title: "four", SequenceIndex: 4},
		}},
	}
	g := graph.Assemble(sources, nil, nil)

	res := Find(g, "note:s:2")
	require.True(t, res.Found)
	assert.Equal(t, 4, res.TotalConnections)

	require.Len(t, res.Related.Sequential, 2)
	assert.Equal(t, "1", res.Related.Sequential[0].NoteID)
	assert.Equal(t, "Previous in source", res.Related.Sequential[0].Explanation)
	assert.Equal(t, "3", res.Related.Sequential[1].NoteID)
	assert.Equal(t, "Next in source", res.Related.Sequential[1].Explanation)

	require.Len(t, res.Related.SameSource, 2)
	assert.Equal(t, "0", res.Related.SameSource[0].NoteID)
	assert.Equal(t, "4", res.Related.SameSource[1].NoteID)
	assert.Equal(t, 2, res.Related.SameSource[0].Score)
	assert.Equal(t, "From the same source", res.Related.SameSource[0].Explanation)

	// A same-source shared tag scores 2 and, being found first, keeps its class
	res = Find(g, "note:s:3")
	require.Len(t, res.Related.SharedTag, 1)
	assert.Equal(t, "0", res.Related.SharedTag[0].NoteID)
	assert.Equal(t, 2, res.Related.SharedTag[0].Score)
	assert.Equal(t, "Both tagged #x", res.Related.SharedTag[0].Explanation)
	require.Len(t, res.Related.Sequential, 2)
	require.Len(t, res.Related.SameSource, 1)
	assert.Equal(t, "1", res.Related.SameSource[0].NoteID)
}

func TestFind_SharedTagScoresSortDescending(t *testing.T) {
	sources := []knowledge.Source{
		{ID: "a", Notes: []knowledge.Note{
			{NoteID: "1", Title: "origin", Tags: []string{"go"}},
			{NoteID: "filler", Title: "between", SequenceIndex: 1},
			{NoteID: "2", Title: "sibling", Tags: []string{"go"}, SequenceIndex: 5},
		}},
		{ID: "b", Notes: []knowledge.Note{{NoteID: "1", Title: "elsewhere", Tags: []string{"#Go", "rust"}}}},
	}
	g := graph.Assemble(sources, nil, nil)

	res := Find(g, "note:a:1")
	require.Len(t, res.Related.SharedTag, 2)
	assert.Equal(t, "note:b:1", res.Related.SharedTag[0].ID)
	assert.Equal(t, 5, res.Related.SharedTag[0].Score)
	assert.Equal(t, []string{"go"}, res.Related.SharedTag[0].Path.Tags)
	assert.Equal(t, "note:a:2", res.Related.SharedTag[1].ID)
	assert.Equal(t, 2, res.Related.SharedTag[1].Score)
}

type stubBuilder struct {
	g   *graph.Graph
	err error
}

func (s stubBuilder) Build(context.Context) (*graph.Graph, error) {
	return s.g, s.err
}

func TestEngine_RelatedNotes(t *testing.T) {
	e := NewEngine(stubBuilder{g: sampleGraph()})

	res, err := e.RelatedNotes(context.Background(), "note:c3:n3")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 0, res.TotalConnections)

	e = NewEngine(stubBuilder{err: errors.New("disk gone")})
	_, err = e.RelatedNotes(context.Background(), "note:c1:n1")
	assert.Error(t, err)
}

func TestExplain(t *testing.T) {
	cases := []struct {
		conn ConnectionType
		path PathInfo
		want string
	}{
		{ConnSharedTag, PathInfo{Tags: []string{"ml", "ai"}}, "Both tagged #ml, #ai"},
		{ConnSharedEntity, PathInfo{Entity: "GPT-4"}, "Both discuss 'GPT-4'"},
		{ConnViaRelationship, PathInfo{FromEntity: "GPT-4", ToEntity: "OpenAI", RelationshipType: knowledge.RelCreatedBy, OriginIsSource: true}, "Covers 'OpenAI', the creator of 'GPT-4'"},
		{ConnViaRelationship, PathInfo{FromEntity: "OpenAI", ToEntity: "GPT-4", RelationshipType: knowledge.RelCreatedBy}, "Covers 'GPT-4', created by 'OpenAI'"},
		{ConnViaRelationship, PathInfo{FromEntity: "GPT-4", ToEntity: "Transformers", RelationshipType: knowledge.RelEnabledBy, OriginIsSource: true}, "Covers 'Transformers', which enabled 'GPT-4'"},
		{ConnViaRelationship, PathInfo{FromEntity: "Transformers", ToEntity: "GPT-4", RelationshipType: knowledge.RelEnabledBy}, "Covers 'GPT-4', which was enabled by 'Transformers'"},
		{ConnViaRelationship, PathInfo{FromEntity: "Rust", ToEntity: "C++", RelationshipType: knowledge.RelContrastsWith, OriginIsSource: true}, "Covers 'C++', which contrasts with 'Rust'"},
		{ConnViaRelationship, PathInfo{FromEntity: "GPT-4", ToEntity: "GPT-3", RelationshipType: knowledge.RelBuildsOn, OriginIsSource: true}, "Covers 'GPT-3', which 'GPT-4' builds on"},
		{ConnViaRelationship, PathInfo{FromEntity: "medicine", ToEntity: "ML", RelationshipType: knowledge.RelAppliesTo}, "Covers 'ML', which applies to 'medicine'"},
		{ConnViaRelationship, PathInfo{FromEntity: "a", ToEntity: "b", RelationshipType: "unknown"}, "Related through 'a' and 'b'"},
		{ConnSequential, PathInfo{Direction: DirectionNext}, "Next in source"},
		{ConnSequential, PathInfo{Direction: DirectionPrevious}, "Previous in source"},
		{ConnSameSource, PathInfo{}, "From the same source"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Explain(tc.conn, tc.path))
	}
}

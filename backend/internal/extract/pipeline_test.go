package extract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notegraph/backend/internal/job"
	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
	apperrors "notegraph/backend/pkg/errors"
)

type scripted struct {
	entities      []knowledge.EntityCandidate
	relationships []knowledge.RelationshipCandidate
	err           error
}

// fakeExtractor answers by note title
type fakeExtractor struct {
	byTitle map[string]scripted
	calls   atomic.Int32
	onCall  func()

	mu      sync.Mutex
	pending map[string][]knowledge.RelationshipCandidate
}

func newFakeExtractor(byTitle map[string]scripted) *fakeExtractor {
	return &fakeExtractor{byTitle: byTitle, pending: make(map[string][]knowledge.RelationshipCandidate)}
}

func (f *fakeExtractor) ExtractEntities(_ context.Context, title, _ string) ([]knowledge.EntityCandidate, error) {
	f.calls.Add(1)
	if f.onCall != nil {
		f.onCall()
	}
	s := f.byTitle[title]
	if s.err != nil {
		return nil, s.err
	}
	if len(s.entities) > 0 {
		f.mu.Lock()
		f.pending[s.entities[0].Name] = s.relationships
		f.mu.Unlock()
	}
	return s.entities, nil
}

func (f *fakeExtractor) ExtractRelationships(_ context.Context, entities []knowledge.EntityCandidate) ([]knowledge.RelationshipCandidate, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[entities[0].Name], nil
}

func ent(name string, typ knowledge.EntityType) knowledge.EntityCandidate {
	return knowledge.EntityCandidate{Name: name, Type: typ, Context: name}
}

func sampleSources() []knowledge.Source {
	return []knowledge.Source{
		{ID: "c1", Title: "Attention paper", Notes: []knowledge.Note{
			{ConversationID: "c1", NoteID: "n1", Title: "Transformers enable GPT-4", Tags: []string{"#ml"}},
		}},
		{ID: "c2", Title: "OpenAI history", Notes: []knowledge.Note{
			{ConversationID: "c2", NoteID: "n2", Title: "GPT-4 was created by OpenAI", Tags: []string{"#ml"}},
		}},
		{ID: "c3", Title: "Recipes", Notes: []knowledge.Note{
			{ConversationID: "c3", NoteID: "n3", Title: "Unrelated topic", Tags: []string{"#cooking"}},
		}},
	}
}

func sampleExtractor() *fakeExtractor {
	return newFakeExtractor(map[string]scripted{
		"Transformers enable GPT-4": {
			entities: []knowledge.EntityCandidate{
				ent("Transformers", knowledge.EntityTechnology),
				ent("GPT-4", knowledge.EntityTechnology),
			},
			relationships: []knowledge.RelationshipCandidate{
				{Source: "GPT-4", Target: "Transformers", Type: knowledge.RelEnabledBy},
			},
		},
		"GPT-4 was created by OpenAI": {
			entities: []knowledge.EntityCandidate{
				ent("GPT-4", knowledge.EntityTechnology),
				ent("OpenAI", knowledge.EntityOrganization),
			},
			relationships: []knowledge.RelationshipCandidate{
				{Source: "GPT-4", Target: "OpenAI", Type: knowledge.RelCreatedBy},
			},
		},
	})
}

func TestPipeline_Run(t *testing.T) {
	repo := store.NewFileStore(afero.NewMemMapFs(), "/data")
	p := NewPipeline(repo, sampleExtractor(), PipelineConfig{Concurrency: 2})
	j := job.New(context.Background(), "extract")

	summary, err := p.Run(context.Background(), j, sampleSources(), Options{})
	require.NoError(t, err)

	assert.Equal(t, job.StateCompleted, j.State())
	assert.Equal(t, 3, j.Snapshot().Done)
	assert.Equal(t, 3, summary.SourcesProcessed)
	assert.Equal(t, 3, summary.NotesProcessed)
	assert.Equal(t, 3, summary.EntitiesCreated)
	assert.Equal(t, 2, summary.RelationshipsAdded)

	rec, err := repo.LoadEntities(context.Background())
	require.NoError(t, err)
	assert.Len(t, rec.Entities, 3)
	assert.Len(t, rec.Relationships, 2)
	for _, conv := range []string{"c1", "c2", "c3"} {
		assert.True(t, rec.IsProcessed(conv), conv)
	}

	var gpt *knowledge.Entity
	for _, e := range rec.Entities {
		if e.Name == "GPT-4" {
			gpt = e
		}
	}
	require.NotNil(t, gpt)
	assert.Len(t, gpt.Mentions, 2)
	assert.Contains(t, rec.NoteEntityIDs("c1", "n1"), gpt.ID)
	assert.Contains(t, rec.NoteEntityIDs("c2", "n2"), gpt.ID)
}

func TestPipeline_SkipsProcessedSources(t *testing.T) {
	repo := store.NewFileStore(afero.NewMemMapFs(), "/data")
	ext := sampleExtractor()
	p := NewPipeline(repo, ext, PipelineConfig{})

	_, err := p.Run(context.Background(), nil, sampleSources(), Options{})
	require.NoError(t, err)
	first := ext.calls.Load()

	summary, err := p.Run(context.Background(), nil, sampleSources(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SourcesSkipped)
	assert.Equal(t, 0, summary.SourcesProcessed)
	assert.Equal(t, first, ext.calls.Load())

	// Forcing re-extracts without duplicating anything
	summary, err = p.Run(context.Background(), nil, sampleSources(), Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SourcesProcessed)
	assert.Equal(t, 0, summary.EntitiesCreated)
	assert.Equal(t, 0, summary.RelationshipsAdded)
}

func TestPipeline_ExtractionErrorsDoNotFailBatch(t *testing.T) {
	repo := store.NewFileStore(afero.NewMemMapFs(), "/data")
	ext := newFakeExtractor(map[string]scripted{
		"broken": {err: apperrors.NewExtractionFailed("entities", errors.New("timeout"))},
		"fine":   {entities: []knowledge.EntityCandidate{ent("Unix", knowledge.EntityConcept)}},
		"junk": {entities: []knowledge.EntityCandidate{
			{Name: "Mars", Type: "planet"},
			{Name: " ", Type: knowledge.EntityConcept},
		}},
	})
	p := NewPipeline(repo, ext, PipelineConfig{})
	j := job.New(context.Background(), "extract")

	summary, err := p.Run(context.Background(), j, []knowledge.Source{
		{ID: "c1", Notes: []knowledge.Note{
			{NoteID: "n1", Title: "broken", SequenceIndex: 0},
			{NoteID: "n2", Title: "fine", SequenceIndex: 1},
			{NoteID: "n3", Title: "junk", SequenceIndex: 2},
		}},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, job.StateCompleted, j.State())
	assert.Equal(t, 1, summary.NotesFailed)
	assert.Equal(t, 2, summary.NotesProcessed)
	assert.Equal(t, 1, summary.EntitiesCreated)
}

func TestPipeline_InferHierarchy(t *testing.T) {
	repo := store.NewFileStore(afero.NewMemMapFs(), "/data")
	ext := newFakeExtractor(map[string]scripted{
		"a": {entities: []knowledge.EntityCandidate{ent("unix", knowledge.EntityConcept)}},
		"b": {entities: []knowledge.EntityCandidate{ent("unix-philosophy", knowledge.EntityConcept)}},
	})
	p := NewPipeline(repo, ext, PipelineConfig{})

	summary, err := p.Run(context.Background(), nil, []knowledge.Source{
		{ID: "c1", Notes: []knowledge.Note{{NoteID: "n1", Title: "a"}, {NoteID: "n2", Title: "b", SequenceIndex: 1}}},
	}, Options{InferHierarchy: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.HierarchyAdded)

	rec, err := repo.LoadEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Relationships, 1)
	assert.Equal(t, knowledge.RelSpecializationOf, rec.Relationships[0].Type)
	assert.True(t, rec.Relationships[0].AutoGenerated)
}

func TestPipeline_CancelledContext(t *testing.T) {
	repo := store.NewFileStore(afero.NewMemMapFs(), "/data")
	p := NewPipeline(repo, sampleExtractor(), PipelineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j := job.New(context.Background(), "extract")

	_, err := p.Run(ctx, j, sampleSources(), Options{})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
	assert.Equal(t, job.StateCancelled, j.State())
}

func TestPipeline_JobCancelledMidRun(t *testing.T) {
	repo := store.NewFileStore(afero.NewMemMapFs(), "/data")
	ext := sampleExtractor()
	j := job.New(context.Background(), "extract")
	ext.onCall = func() { _ = j.Cancel() }
	p := NewPipeline(repo, ext, PipelineConfig{Concurrency: 1})

	_, err := p.Run(context.Background(), j, sampleSources(), Options{})
	require.Error(t, err)
	assert.Equal(t, job.StateCancelled, j.State())

	rec, err := repo.LoadEntities(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.IsProcessed("c1"))
	assert.Empty(t, rec.Entities)
}

type failingRepo struct {
	store.EntityRepository
}

func (failingRepo) SaveEntities(context.Context, *store.EntityRecord) error {
	return apperrors.NewStoreIO("/data/entities.json", "write", errors.New("disk full"))
}

func TestPipeline_SaveFailureFailsJob(t *testing.T) {
	repo := failingRepo{EntityRepository: store.NewFileStore(afero.NewMemMapFs(), "/data")}
	p := NewPipeline(repo, sampleExtractor(), PipelineConfig{})
	j := job.New(context.Background(), "extract")

	_, err := p.Run(context.Background(), j, sampleSources(), Options{})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeStore))
	assert.Equal(t, job.StateFailed, j.State())
}

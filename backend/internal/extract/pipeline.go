package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"notegraph/backend/internal/constants"
	"notegraph/backend/internal/entity"
	"notegraph/backend/internal/job"
	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/relation"
	"notegraph/backend/internal/store"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// PipelineConfig tunes a Pipeline. Zero values take the package defaults.
type PipelineConfig struct {
	Concurrency             int
	Timeout                 time.Duration
	FuzzyThreshold          float64
	MaxEntitiesPerNote      int
	MaxRelationshipsPerNote int
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = constants.DefaultExtractConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = constants.DefaultExtractTimeout
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = constants.FuzzyMatchThreshold
	}
	if c.MaxEntitiesPerNote <= 0 {
		c.MaxEntitiesPerNote = constants.MaxEntitiesPerNote
	}
	if c.MaxRelationshipsPerNote <= 0 {
		c.MaxRelationshipsPerNote = constants.MaxRelationshipsPerNote
	}
	return c
}

// Options select what a run does
type Options struct {
	Force          bool // Re-extract conversations already marked processed
	InferHierarchy bool // Run hierarchical inference once the batch is applied
}

// Summary reports what a run changed
type Summary struct {
	SourcesProcessed   int `json:"sources_processed"`
	SourcesSkipped     int `json:"sources_skipped"`
	NotesProcessed     int `json:"notes_processed"`
	NotesFailed        int `json:"notes_failed"`
	EntitiesCreated    int `json:"entities_created"`
	RelationshipsAdded int `json:"relationships_added"`
	HierarchyAdded     int `json:"hierarchy_added"`
}

// Pipeline extracts entities and relationships for whole sources. LLM calls
// fan out across notes; their results are applied to the entity record by the
// calling goroutine only, in note order.
type Pipeline struct {
	repo      store.EntityRepository
	extractor Extractor
	cfg       PipelineConfig
	logger    *zap.Logger
}

// NewPipeline creates an extraction pipeline
func NewPipeline(repo store.EntityRepository, extractor Extractor, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		repo:      repo,
		extractor: extractor,
		cfg:       cfg.withDefaults(),
		logger:    logger.Named("pipeline"),
	}
}

type noteResult struct {
	note          knowledge.Note
	entities      []knowledge.EntityCandidate
	relationships []knowledge.RelationshipCandidate
	failed        bool
}

// Run extracts every source not yet processed (all of them with opts.Force)
// and saves the entity record after each source. Extraction failures on a
// note never fail the run. The job ends completed, cancelled when ctx or the
// job is cancelled, or failed when the record cannot be loaded or saved.
func (p *Pipeline) Run(ctx context.Context, j *job.Job, sources []knowledge.Source, opts Options) (*Summary, error) {
	if j == nil {
		j = job.New(ctx, "extract")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(j.Context(), cancel)
	defer stop()

	summary := &Summary{}

	rec, err := p.repo.LoadEntities(ctx)
	if err != nil {
		return summary, p.abort(ctx, j, fmt.Errorf("failed to load entities: %w", err))
	}

	var pending []knowledge.Source
	total := 0
	for _, src := range sources {
		if !opts.Force && rec.IsProcessed(src.ID) {
			summary.SourcesSkipped++
			continue
		}
		pending = append(pending, src)
		total += len(src.Notes)
	}
	if err := j.Start(total); err != nil {
		if j.State() == job.StateCancelled {
			return summary, apperrors.NewContextCancelled("extract", context.Canceled)
		}
		return summary, err
	}

	p.logger.Info("Extraction started",
		zap.String("job_id", j.ID()),
		zap.Int("sources", len(pending)),
		zap.Int("skipped", summary.SourcesSkipped),
		zap.Int("notes", total),
	)

	resolver := entity.NewResolver(rec, entity.WithThreshold(p.cfg.FuzzyThreshold))
	acceptor := relation.NewAcceptor(p.cfg.MaxRelationshipsPerNote)
	idx := relation.NewIndex(rec)
	entitiesBefore := len(rec.Entities)

	for _, src := range pending {
		results := p.extractSource(ctx, src)
		if cancelled(ctx, j) {
			return summary, p.abort(ctx, j, context.Canceled)
		}

		for _, res := range results {
			if res.failed {
				summary.NotesFailed++
			} else {
				summary.NotesProcessed++
			}
			summary.RelationshipsAdded += p.apply(resolver, acceptor, rec, idx, src.ID, res)
		}
		rec.MarkProcessed(src.ID)

		if err := p.repo.SaveEntities(ctx, rec); err != nil {
			return summary, p.abort(ctx, j, fmt.Errorf("failed to save entities after %s: %w", src.ID, err))
		}
		summary.SourcesProcessed++
		j.Advance(len(src.Notes), src.Title)

		p.logger.Debug("Source extracted",
			zap.String("conversation_id", src.ID),
			zap.Int("notes", len(src.Notes)),
		)
	}

	if opts.InferHierarchy {
		summary.HierarchyAdded = relation.InferHierarchy(rec)
		if summary.HierarchyAdded > 0 {
			if err := p.repo.SaveEntities(ctx, rec); err != nil {
				return summary, p.abort(ctx, j, fmt.Errorf("failed to save inferred relationships: %w", err))
			}
		}
	}
	summary.EntitiesCreated = len(rec.Entities) - entitiesBefore

	if err := j.Complete(); err != nil {
		if j.State() == job.StateCancelled {
			return summary, apperrors.NewContextCancelled("extract", context.Canceled)
		}
		return summary, err
	}

	p.logger.Info("Extraction completed",
		zap.String("job_id", j.ID()),
		zap.Int("sources", summary.SourcesProcessed),
		zap.Int("notes", summary.NotesProcessed),
		zap.Int("failed_notes", summary.NotesFailed),
		zap.Int("entities_created", summary.EntitiesCreated),
		zap.Int("relationships_added", summary.RelationshipsAdded),
		zap.Int("hierarchy_added", summary.HierarchyAdded),
	)
	return summary, nil
}

func cancelled(ctx context.Context, j *job.Job) bool {
	return ctx.Err() != nil || j.State() == job.StateCancelled
}

// abort ends the job as cancelled when ctx is done and as failed otherwise
func (p *Pipeline) abort(ctx context.Context, j *job.Job, cause error) error {
	if cancelled(ctx, j) {
		_ = j.Cancel()
		p.logger.Info("Extraction cancelled", zap.String("job_id", j.ID()))
		return apperrors.NewContextCancelled("extract", cause)
	}
	if j.State() == job.StatePending {
		_ = j.Start(0)
	}
	_ = j.Fail(cause)
	p.logger.Error("Extraction failed", zap.String("job_id", j.ID()), zap.Error(cause))
	return cause
}

// extractSource runs the LLM calls for every note of a source concurrently.
// Results come back in sequence order.
func (p *Pipeline) extractSource(ctx context.Context, src knowledge.Source) []noteResult {
	notes := make([]knowledge.Note, len(src.Notes))
	copy(notes, src.Notes)
	sort.SliceStable(notes, func(a, b int) bool {
		return notes[a].SequenceIndex < notes[b].SequenceIndex
	})

	results := make([]noteResult, len(notes))
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for i, note := range notes {
		g.Go(func() error {
			results[i] = p.extractNote(ctx, src.ID, note)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// extractNote never fails: errors and timeouts are logged and yield no candidates
func (p *Pipeline) extractNote(ctx context.Context, conversationID string, note knowledge.Note) noteResult {
	res := noteResult{note: note}
	if ctx.Err() != nil {
		res.failed = true
		return res
	}

	nctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	entities, err := p.extractor.ExtractEntities(nctx, note.Title, note.Body)
	if err != nil {
		p.logFailure(conversationID, note.NoteID, "entities", err)
		res.failed = true
		return res
	}
	res.entities = p.sanitizeEntities(entities)

	rels, err := p.extractor.ExtractRelationships(nctx, res.entities)
	if err != nil {
		p.logFailure(conversationID, note.NoteID, "relationships", err)
		return res
	}
	res.relationships = rels
	return res
}

// sanitizeEntities drops candidates without a name or with an unknown type,
// and caps the rest
func (p *Pipeline) sanitizeEntities(in []knowledge.EntityCandidate) []knowledge.EntityCandidate {
	out := make([]knowledge.EntityCandidate, 0, len(in))
	for _, c := range in {
		if len(out) >= p.cfg.MaxEntitiesPerNote {
			break
		}
		typ, err := knowledge.ParseEntityType(string(c.Type))
		if err != nil || strings.TrimSpace(c.Name) == "" {
			continue
		}
		c.Type = typ
		out = append(out, c)
	}
	return out
}

func (p *Pipeline) logFailure(conversationID, noteID, stage string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.NewContextTimeout("extract "+stage, p.cfg.Timeout)
	}
	p.logger.Warn("Extraction returned no results",
		zap.String("conversation_id", conversationID),
		zap.String("note_id", noteID),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

// apply resolves a note's entities and accepts its relationships. Returns the
// number of relationships added.
func (p *Pipeline) apply(
	resolver *entity.Resolver,
	acceptor *relation.Acceptor,
	rec *store.EntityRecord,
	idx relation.Index,
	conversationID string,
	res noteResult,
) int {
	if len(res.entities) == 0 {
		return 0
	}
	resolved := make(map[string]string, len(res.entities))
	for _, c := range res.entities {
		id := resolver.Resolve(c, conversationID, res.note.NoteID)
		resolved[strings.ToLower(strings.TrimSpace(c.Name))] = id
	}
	return acceptor.Accept(rec, idx, res.relationships, resolved, conversationID, res.note.NoteID)
}

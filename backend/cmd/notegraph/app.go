package main

import (
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/extract"
	"notegraph/backend/internal/graph"
	"notegraph/backend/internal/job"
	"notegraph/backend/internal/notes"
	"notegraph/backend/internal/related"
	"notegraph/backend/internal/review"
	"notegraph/backend/internal/store"
	"notegraph/backend/pkg/config"
	"notegraph/backend/pkg/logger"
)

// app holds the dependencies shared by every command. It is populated once
// the root command has loaded configuration.
type app struct {
	cfg    *config.Config
	store  *store.FileStore
	notes  notes.Source
	jobs   *job.Registry
	fs     afero.Fs
	logger *zap.Logger

	// extractor overrides the LLM-backed extractor when set
	extractor extract.Extractor
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}

	a.cfg = cfg
	a.store = store.NewFileStore(a.fs, cfg.DataDir)
	a.notes = notes.NewFileSource(a.fs, cfg.NotesFile)
	a.jobs = job.NewRegistry()
	a.logger = logger.Named("cli")

	a.logger.Debug("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("data_dir", cfg.DataDir),
		zap.String("notes_file", cfg.NotesFile),
	)
	return nil
}

func (a *app) builder() *graph.Builder {
	return graph.NewBuilder(a.notes, a.store, a.store)
}

func (a *app) related() *related.Engine {
	return related.NewEngine(a.builder())
}

func (a *app) review() *review.Service {
	return review.NewService(a.store, a.store, a.cfg.DuplicateThreshold)
}

func (a *app) pipeline(extractor extract.Extractor) *extract.Pipeline {
	return extract.NewPipeline(a.store, extractor, extract.PipelineConfig{
		Concurrency:             a.cfg.ExtractConcurrency,
		Timeout:                 a.cfg.ExtractTimeout,
		FuzzyThreshold:          a.cfg.FuzzyMatchThreshold,
		MaxEntitiesPerNote:      a.cfg.MaxEntitiesPerNote,
		MaxRelationshipsPerNote: a.cfg.MaxRelationshipsPerNote,
	})
}

func (a *app) entityExtractor() extract.Extractor {
	if a.extractor != nil {
		return a.extractor
	}
	llm := adapter.NewLLMAdapter(a.cfg.LiteLLMURL, a.cfg.OpenRouterAPIKey, a.cfg.ModelID)
	return extract.NewLLMExtractor(llm, a.cfg.MaxEntitiesPerNote, a.cfg.MaxRelationshipsPerNote)
}

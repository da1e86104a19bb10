package main

import (
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notegraph/backend/internal/extract"
	"notegraph/backend/internal/job"
	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/notes"
	"notegraph/backend/internal/relation"
)

type jobOutput struct {
	Job     job.Snapshot     `json:"job"`
	Summary *extract.Summary `json:"summary,omitempty"`
	Added   *int             `json:"added,omitempty"`
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		opts          extract.Options
		conversations []string
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract entities and relationships from unprocessed sources",
		Long: `Run entity and relationship extraction over every source that has not
been processed yet. Results are saved after each source, so an interrupted
run keeps the sources it finished.

Examples:
  notegraph extract
  notegraph extract --force --conversation c1
  notegraph extract --infer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sources, err := a.notes.ListSources(ctx)
			if err != nil {
				return err
			}
			sources = notes.Indexable(sources)
			if len(conversations) > 0 {
				sources = slices.DeleteFunc(sources, func(s knowledge.Source) bool {
					return !slices.Contains(conversations, s.ID)
				})
			}

			j := a.jobs.Create(ctx, "extract")
			summary, err := a.pipeline(a.entityExtractor()).Run(ctx, j, sources, opts)
			if err != nil {
				a.logger.Error("Extraction run did not complete",
					zap.String("job_id", j.ID()),
					zap.String("state", string(j.State())),
					zap.Error(err),
				)
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobOutput{Job: j.Snapshot(), Summary: summary})
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-extract sources already marked processed")
	cmd.Flags().BoolVar(&opts.InferHierarchy, "infer", false, "run hierarchical inference after extraction")
	cmd.Flags().StringSliceVar(&conversations, "conversation", nil, "limit extraction to these conversation ids")
	return cmd
}

func newInferCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "infer",
		Short: "Infer specialization relationships from compound entity names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			j := a.jobs.Create(ctx, "infer")
			if err := j.Start(1); err != nil {
				return err
			}

			rec, err := a.store.LoadEntities(ctx)
			if err != nil {
				_ = j.Fail(err)
				return err
			}
			added := relation.InferHierarchy(rec)
			if added > 0 {
				if err := a.store.SaveEntities(ctx, rec); err != nil {
					_ = j.Fail(err)
					return err
				}
			}
			j.Advance(1, "")
			if err := j.Complete(); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobOutput{Job: j.Snapshot(), Added: &added})
		},
	}
}

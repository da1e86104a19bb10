package main

import (
	"github.com/spf13/cobra"

	"notegraph/backend/internal/mirror"
	apperrors "notegraph/backend/pkg/errors"
)

func newMirrorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Project the knowledge graph into Neo4j",
		Long: `Build the graph and replace the Neo4j projection with it. Requires
NEO4J_URI and NEO4J_PASSWORD. The projection is for exploration only; the
entity and link records stay the system of record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.MirrorEnabled() {
				return apperrors.NewConfigMissingRequired("NEO4J_URI")
			}
			ctx := cmd.Context()

			g, err := a.builder().Build(ctx)
			if err != nil {
				return err
			}

			m, err := mirror.Connect(ctx, a.cfg.Neo4jURI, a.cfg.Neo4jUser, a.cfg.Neo4jPassword)
			if err != nil {
				return err
			}
			defer m.Close(ctx)

			stats, err := m.Export(ctx, g)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&app{})
}

func newRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "notegraph",
		Short: "Build and curate a knowledge graph over atomic notes",
		Long: `notegraph extracts entities and relationships from a corpus of notes,
assembles them into a graph of notes, sources and entities, and answers
related-note queries over it.

Configuration is read from the environment (and a .env file if present).
Every command prints JSON to stdout; logs go to stderr.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.AddCommand(
		newExtractCmd(a),
		newInferCmd(a),
		newGraphCmd(a),
		newRelatedCmd(a),
		newDuplicatesCmd(a),
		newMergeCmd(a),
		newReviewCmd(a),
		newLinkCmd(a),
		newMirrorCmd(a),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"github.com/spf13/cobra"
)

func newGraphCmd(a *app) *cobra.Command {
	var statsOnly bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build the knowledge graph and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.builder().Build(cmd.Context())
			if err != nil {
				return err
			}
			if statsOnly {
				return printJSON(cmd.OutOrStdout(), g.Stats)
			}
			return printJSON(cmd.OutOrStdout(), g)
		},
	}
	cmd.Flags().BoolVar(&statsOnly, "stats", false, "print only graph statistics")
	return cmd
}

func newRelatedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "related <note-id>",
		Short: "List the notes related to a note, grouped by connection",
		Long: `List the notes related to a note. The note is given as its graph id
("note:<conversation>:<note>") or as "<conversation>:<note>".

An unknown note prints a result with "found": false.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.related().RelatedNotes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

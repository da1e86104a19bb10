package main

import (
	"github.com/spf13/cobra"
)

func newDuplicatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List groups of entities whose names look alike",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.review().FindDuplicates(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), groups)
		},
	}
}

func newMergeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <canonical-id> <entity-id>...",
		Short: "Merge entities into a canonical entity",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.review().Merge(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newReviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review <entity-id>...",
		Short: "Mark entities reviewed so they are not offered as duplicates of each other again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := a.review().MarkReviewed(cmd.Context(), args...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"added": added})
		},
	}
}

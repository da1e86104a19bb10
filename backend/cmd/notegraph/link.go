package main

import (
	"context"

	"github.com/spf13/cobra"

	"notegraph/backend/internal/review"
)

func newLinkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage manual links between graph nodes",
	}

	var label string
	add := &cobra.Command{
		Use:   "add <source-node> <target-node>",
		Short: "Link two graph nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := a.review().AddLink(cmd.Context(), args[0], args[1], label)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), link)
		},
	}
	add.Flags().StringVar(&label, "label", "", "short description of the link")

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List manual links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := a.review().ListLinks(cmd.Context(), all)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), links)
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include dismissed links")

	cmd.AddCommand(
		add,
		list,
		linkActionCmd(a, "remove", "Delete a manual link", (*review.Service).RemoveLink),
		linkActionCmd(a, "dismiss", "Hide a manual link from the graph", (*review.Service).DismissLink),
		linkActionCmd(a, "restore", "Show a dismissed link again", (*review.Service).RestoreLink),
	)
	return cmd
}

func linkActionCmd(a *app, use, short string, action func(*review.Service, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <link-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := action(a.review(), cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"id": args[0], "status": use})
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/oliveagle/jsonpath"
	"github.com/spf13/cobra"
)

func (a *app) draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect saved wizard drafts",
	}
	cmd.AddCommand(a.draftListCmd(), a.draftShowCmd())
	return cmd
}

func (a *app) draftListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the owner's drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			drafts, err := s.stores.Drafts.ListDrafts(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No drafts found.")
				return nil
			}
			for _, d := range drafts {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s  step %-4s  %s\n", d.ID, d.Step, d.Modified.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func (a *app) draftShowCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Print a draft record, or the part of it a JSONPath selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.stores.Drafts.LoadDraft(cmd.Context(), args[0], owner)
			if err != nil {
				return err
			}
			b, err := domain.MarshalDraft(d)
			if err != nil {
				return err
			}
			var record any
			if err := json.Unmarshal(b, &record); err != nil {
				return err
			}
			if path != "" {
				record, err = jsonpath.JsonPathLookup(record, path)
				if err != nil {
					return fmt.Errorf("--path %s: %w", path, err)
				}
			}
			out, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "JSONPath into the record, e.g. $.data.global")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iconidentify/clipbatch/internal/domain"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var clearHistory bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the outcomes recorded for the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if clearHistory {
				if err := a.batches.ClearHistory(cmd.Context(), a.session); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			}

			outcomes, err := a.batches.History(cmd.Context(), a.session)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), outcomes)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearHistory, "clear", false, "Delete the recorded outcomes instead of printing them")

	return cmd
}

func printHistory(w io.Writer, outcomes []domain.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No downloads recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tPLATFORM\tURL\tDETAIL")
	for _, o := range outcomes {
		detail := o.Error
		if o.Succeeded() {
			detail = strings.Join(o.Files, ", ")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.Index, o.Status, o.Platform, o.URL, detail)
	}
	tw.Flush()
}

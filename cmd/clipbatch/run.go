package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gosuri/uilive"
	"github.com/spf13/cobra"

	"github.com/iconidentify/clipbatch/internal/domain"
	"github.com/iconidentify/clipbatch/internal/service"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var keepHistory bool

	cmd := &cobra.Command{
		Use:   "run <file.xlsx>",
		Short: "Download every link in the video_link column of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return runBatch(cmd, a, args[0], keepHistory)
		},
	}

	cmd.Flags().BoolVar(&keepHistory, "keep-history", false, "Keep outcomes of earlier runs in the history")

	return cmd
}

func runBatch(cmd *cobra.Command, a *app, path string, keepHistory bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	urls, err := a.links.Upload(ctx, a.session, filepath.Base(path), f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	fmt.Fprintf(out, "Downloading %d link(s) into %s\n", len(urls), a.cfg.Storage.BasePath)

	writer := uilive.New()
	writer.Out = out
	writer.Start()

	sink := service.NewChannelSink(len(urls) + 1)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for event := range sink.Events() {
			renderEvent(writer, writer.Bypass(), event)
		}
	}()

	outcomes, err := a.batches.Run(ctx, service.BatchRequest{
		SessionID:    a.session,
		URLs:         urls,
		Sink:         sink,
		ClearHistory: !keepHistory,
	})
	<-rendered
	writer.Stop()
	if err != nil {
		return err
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		}
	}
	fmt.Fprintf(out, "Done: %d succeeded, %d failed\n", succeeded, len(outcomes)-succeeded)
	return nil
}

// renderEvent writes one permanent line per finished URL and keeps a live
// counter on the last line.
func renderEvent(live, lines io.Writer, event domain.BatchEvent) {
	switch event.Type {
	case domain.BatchEventProgress:
		if event.Status == domain.OutcomeSuccess {
			fmt.Fprintf(lines, "[%d] ok      %s\n", event.Current, event.URL)
		} else {
			fmt.Fprintf(lines, "[%d] failed  %s: %s\n", event.Current, event.URL, event.Error)
		}
		fmt.Fprintf(live, "%d/%d complete\n", event.Completed, event.Total)
	case domain.BatchEventComplete:
		fmt.Fprintf(live, "%d/%d complete\n", event.Total, event.Total)
	}
}

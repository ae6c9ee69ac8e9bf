package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vlmprep/internal/runlog"
	"vlmprep/internal/services"
)

type skippedView struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type runView struct {
	ID         string     `json:"id"`
	Stage      string     `json:"stage"`
	Status     string     `json:"status"`
	Input      string     `json:"input,omitempty"`
	Output     string     `json:"output,omitempty"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// SkippedItems is only filled for a single run (--id).
	SkippedItems []skippedView `json:"skipped_items,omitempty"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent stage runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openRunLogReadOnly(cfg)
			if err != nil {
				return err
			}
			if id := strings.TrimSpace(runID); id != "" {
				if store == nil {
					return fmt.Errorf("run %s: %w", id, services.ErrNotFound)
				}
				defer store.Close()
				run, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, toRunView(*run))
				}
				renderRunDetail(cmd, *run)
				return nil
			}

			var runs []runlog.Run
			if store != nil {
				defer store.Close()
				runs, err = store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, toRunView(run))
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				duration := "-"
				if d := run.Duration(); d > 0 {
					duration = d.Round(time.Millisecond).String()
				}
				rows = append(rows, []string{
					humanize.Time(run.StartedAt),
					run.Stage,
					run.Status,
					strconv.Itoa(run.Processed),
					strconv.Itoa(run.Skipped),
					duration,
					run.Output,
				})
			}
			fmt.Fprintln(out, renderTable("",
				[]string{"Started", "Stage", "Status", "Processed", "Skipped", "Duration", "Output"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "id", "", "Show one run with its skipped items")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func toRunView(run runlog.Run) runView {
	view := runView{
		ID:        run.ID,
		Stage:     run.Stage,
		Status:    run.Status,
		Input:     run.Input,
		Output:    run.Output,
		Processed: run.Processed,
		Skipped:   run.Skipped,
		Error:     run.Error,
		StartedAt: run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		view.FinishedAt = &finished
	}
	for _, item := range run.SkippedItems {
		view.SkippedItems = append(view.SkippedItems, skippedView{Name: item.Name, Reason: item.Reason})
	}
	return view
}

func renderRunDetail(cmd *cobra.Command, run runlog.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", run.ID)
	fmt.Fprintf(out, "Stage:     %s\n", run.Stage)
	fmt.Fprintf(out, "Status:    %s\n", run.Status)
	fmt.Fprintf(out, "Started:   %s (%s)\n", run.StartedAt.Local().Format(time.RFC3339), humanize.Time(run.StartedAt))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(out, "Duration:  %s\n", d.Round(time.Millisecond))
	}
	if run.Input != "" {
		fmt.Fprintf(out, "Input:     %s\n", run.Input)
	}
	if run.Output != "" {
		fmt.Fprintf(out, "Output:    %s\n", run.Output)
	}
	fmt.Fprintf(out, "Processed: %s\n", formatCount(run.Processed))
	if run.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", run.Error)
	}
	printSkipped(out, run.SkippedItems)
}

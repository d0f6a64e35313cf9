package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"modelfarm/internal/failure"
	"modelfarm/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs, or the artifacts of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return failure.Wrap(failure.ErrUsage, "cli", "history", "run ledger is disabled (ledger.enabled = false)", nil)
			}
			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return failure.Wrap(failure.ErrFilesystem, "cli", "open ledger", cfg.LedgerPath(), err)
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0], asJSON)
			}
			if limit <= 0 {
				limit = cfg.Ledger.HistoryLimit
			}
			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.Command,
					humanize.Time(run.StartedAt),
					formatDuration(run.Duration()),
					string(run.Outcome),
					strconv.Itoa(run.Fetched),
					strconv.Itoa(run.Linked),
					humanize.Bytes(uint64(max(run.Bytes, 0))),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Command", "Started", "Duration", "Outcome", "Fetched", "Linked", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of runs to show (default from ledger.history_limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func showRun(cmd *cobra.Command, store *ledger.Store, id string, asJSON bool) error {
	run, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return failure.Wrap(failure.ErrUsage, "cli", "history", fmt.Sprintf("no run matches %q", id), nil)
	}
	artifacts, err := store.Artifacts(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, struct {
			Run       *ledger.Run       `json:"run"`
			Artifacts []ledger.Artifact `json:"artifacts"`
		}{run, artifacts})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Command)
	fmt.Fprintf(out, "Manifest: %s\n", run.ManifestPath)
	fmt.Fprintf(out, "Started: %s, took %s\n", run.StartedAt.Local().Format(time.DateTime), formatDuration(run.Duration()))
	fmt.Fprintf(out, "Outcome: %s\n", run.Outcome)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}
	if len(artifacts) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		size := ""
		if a.Bytes > 0 {
			size = humanize.Bytes(uint64(a.Bytes))
		}
		rows = append(rows, []string{a.Kind, a.Name, string(a.Action), a.Path, size})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Kind", "Name", "Action", "Path", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

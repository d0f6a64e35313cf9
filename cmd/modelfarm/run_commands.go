package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modelfarm/internal/manifest"
	"modelfarm/internal/preflight"
	"modelfarm/internal/workflow"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var links bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch every manifest entry and rebuild the link directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, true, func(mgr *workflow.Manager, m *manifest.Manifest) error {
				summary, err := mgr.Download(cmd.Context(), m, workflow.DownloadOptions{Links: links})
				if err != nil {
					return err
				}
				summary.Render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&links, "links", true, "Rebuild the link directory after fetching")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var links bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove every link and recreate the link directory empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !links {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clean (--links=false)")
				return nil
			}
			return ctx.withManager(cmd, true, func(mgr *workflow.Manager, m *manifest.Manifest) error {
				summary, err := mgr.Clean(cmd.Context(), m)
				if err != nil {
					return err
				}
				summary.Render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&links, "links", true, "Wipe and recreate the link directory")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the manifest, token, and directories without downloading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, false, func(mgr *workflow.Manager, m *manifest.Manifest) error {
				report, err := mgr.Check(cmd.Context(), m)
				if err != nil {
					return err
				}
				renderCheck(cmd, m, report)
				return nil
			})
		},
	}
}

func renderCheck(cmd *cobra.Command, m *manifest.Manifest, report *workflow.CheckReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest: %s\n", m.Source)
	fmt.Fprintf(out, "Entries: %d models, %d configs, %d raw artifacts (%d disabled)\n",
		report.Models, report.Configs, report.Raw, report.Disabled)
	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		rows = append(rows, []string{r.Name, passLabel(r), r.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
	for _, c := range report.Collisions {
		fmt.Fprintf(out, "warning: %s\n", c)
	}
	fmt.Fprintln(out, "Manifest OK")
}

func passLabel(r preflight.Result) string {
	if r.Passed {
		return "ok"
	}
	return "FAILED"
}

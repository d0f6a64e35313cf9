package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modelfarm/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report external tools, directory access, and hub reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0

			fmt.Fprintln(out, "Dependencies")
			var depRows [][]string
			for _, status := range preflight.CheckSystemDeps(cfg) {
				state := "ok"
				switch {
				case status.Available:
				case status.Optional:
					state = "missing (optional)"
				default:
					state = "MISSING"
					failed++
				}
				depRows = append(depRows, []string{status.Name, status.Command, state, status.Purpose})
			}
			fmt.Fprintln(out, renderTable([]string{"Tool", "Command", "Status", "Purpose"}, depRows, nil))

			var results []preflight.Result
			m, manifestErr := ctx.loadManifest()
			if manifestErr != nil {
				results = append(results, preflight.Result{Name: "Manifest", Detail: manifestErr.Error()})
			} else {
				results = append(results, preflight.Result{Name: "Manifest", Passed: true, Detail: m.Source})
			}
			results = append(results, preflight.RunAll(cmd.Context(), cfg, m)...)
			if !offline {
				ref := ""
				if m != nil {
					ref = m.CredentialRef
				}
				results = append(results, preflight.CheckHubFromConfig(cmd.Context(), cfg, ref))
			}

			fmt.Fprintln(out, "Checks")
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, passLabel(r), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			failed += len(preflight.Failed(results))
			if failed > 0 {
				return fmt.Errorf("doctor: %d check(s) failed", failed)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the hub reachability check")
	return cmd
}

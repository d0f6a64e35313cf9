package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modelfarm/internal/linkfarm"
	"modelfarm/internal/manifest"
)

type entryView struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Source  string `json:"source"`
	Enabled bool   `json:"enabled"`
	Link    string `json:"link"`
	State   string `json:"state"`
	Target  string `json:"target,omitempty"`
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show manifest entries and the state of their links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			builder := &linkfarm.Builder{LinkDir: m.LinkDir, CacheDir: m.CacheDir}
			states, err := builder.Inspect()
			if err != nil {
				return err
			}
			views := entryViews(m, linkfarm.Index(states))
			if asJSON {
				return writeJSON(cmd, views)
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Manifest declares no entries")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.Kind, v.Name, v.Source, yesNo(v.Enabled), v.Link, v.State})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Kind", "Name", "Source", "Enabled", "Link", "State"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func entryViews(m *manifest.Manifest, links map[string]linkfarm.LinkState) []entryView {
	referenced := make(map[string]bool)
	for _, name := range m.ReferencedConfigs() {
		referenced[name] = true
	}

	views := make([]entryView, 0, len(m.Configs)+len(m.RawArtifacts)+len(m.Models))
	for _, entry := range m.Entries() {
		var v entryView
		switch e := entry.(type) {
		case manifest.ConfigEntry:
			v = entryView{Name: e.Name, Source: e.URL, Enabled: referenced[e.Name], Link: linkfarm.ConfigLinkName(e)}
		case manifest.RawArtifactEntry:
			v = entryView{Name: e.Name, Source: e.URL, Enabled: e.Enabled, Link: e.Filename}
		case manifest.ModelEntry:
			v = entryView{Name: e.Name, Source: e.Key(), Enabled: e.Enabled, Link: linkfarm.ModelLinkName(e)}
		}
		v.Kind = string(entry.Kind())
		v.State = "missing"
		if state, ok := links[v.Link]; ok {
			v.State = "linked"
			if state.Dangling {
				v.State = "dangling"
			}
			v.Target = state.Target
		}
		views = append(views, v)
	}
	return views
}

package workflow

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"modelfarm/internal/manifest"
)

func init() {
	_ = message.Set(language.English, "%d file(s)",
		plural.Selectf(1, "%d", "=1", "%d file", "other", "%d files"))
	_ = message.Set(language.English, "%d link(s)",
		plural.Selectf(1, "%d", "=1", "%d link", "other", "%d links"))
}

var printer = message.NewPrinter(language.English)

// Counts tallies what a run did with the entries of one kind.
type Counts struct {
	Fetched  int
	Skipped  int
	Linked   int
	Disabled int
	Bytes    int64
}

func (c *Counts) add(o Counts) {
	c.Fetched += o.Fetched
	c.Skipped += o.Skipped
	c.Linked += o.Linked
	c.Disabled += o.Disabled
	c.Bytes += o.Bytes
}

// Summary reports the outcome of a download or clean run.
type Summary struct {
	RunID   string
	Command string
	Links   bool
	Configs Counts
	Raw     Counts
	Models  Counts
	// Removed counts links deleted by clean.
	Removed  int
	Duration time.Duration
}

func newSummary(runID, command string, links bool) *Summary {
	return &Summary{RunID: runID, Command: command, Links: links}
}

func (s *Summary) counts(kind manifest.Kind) *Counts {
	switch kind {
	case manifest.KindConfig:
		return &s.Configs
	case manifest.KindRaw:
		return &s.Raw
	default:
		return &s.Models
	}
}

// Totals sums the counts of every kind.
func (s *Summary) Totals() Counts {
	var total Counts
	total.add(s.Configs)
	total.add(s.Raw)
	total.add(s.Models)
	return total
}

// Render writes a human readable report of the run.
func (s *Summary) Render(w io.Writer) {
	if s.Command == "clean" {
		fmt.Fprintf(w, "removed %s (run %s)\n", printer.Sprintf("%d link(s)", s.Removed), s.RunID)
		return
	}
	rows := []struct {
		label  string
		counts Counts
	}{
		{"configs", s.Configs},
		{"raw artifacts", s.Raw},
		{"models", s.Models},
	}
	for _, row := range rows {
		c := row.counts
		line := fmt.Sprintf("%-15s fetched %s, skipped %d, disabled %d",
			row.label+":", printer.Sprintf("%d file(s)", c.Fetched), c.Skipped, c.Disabled)
		if s.Links {
			line += ", " + printer.Sprintf("%d link(s)", c.Linked)
		}
		fmt.Fprintln(w, line)
	}
	total := s.Totals()
	fmt.Fprintf(w, "downloaded %s in %s (run %s)\n", humanize.Bytes(uint64(max(total.Bytes, 0))), s.Duration.Round(time.Millisecond), s.RunID)
}

package fetch

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"modelfarm/internal/logging"
)

// Progress reports transfer progress as a terminal bar when the output is a
// TTY and as sampled log lines otherwise. A nil *Progress reports nothing.
type Progress struct {
	out     io.Writer
	bar     bool
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

// NewProgress builds a reporter writing bars to out. When out is not a
// terminal, progress is logged in 10% steps through logger instead.
func NewProgress(out io.Writer, logger *slog.Logger) *Progress {
	return &Progress{
		out:     out,
		bar:     isTerminal(out),
		logger:  logging.NewComponentLogger(logger, "fetch"),
		sampler: logging.NewProgressSampler(10),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Tracker receives the bytes of one transfer.
type Tracker interface {
	io.Writer
	Finish()
}

type nopTracker struct{}

func (nopTracker) Write(p []byte) (int, error) { return len(p), nil }
func (nopTracker) Finish()                     {}

// Start begins tracking a transfer of total bytes; total may be -1.
func (p *Progress) Start(name string, total int64) Tracker {
	if p == nil {
		return nopTracker{}
	}
	if p.bar {
		return &barTracker{bar: progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)}
	}
	p.sampler.Reset()
	return &logTracker{p: p, name: name, total: total}
}

type barTracker struct {
	bar *progressbar.ProgressBar
}

func (t *barTracker) Write(b []byte) (int, error) { return t.bar.Write(b) }

func (t *barTracker) Finish() { _ = t.bar.Finish() }

type logTracker struct {
	p     *Progress
	name  string
	total int64
	done  int64
}

func (t *logTracker) Write(b []byte) (int, error) {
	t.done += int64(len(b))
	percent := -1.0
	if t.total > 0 {
		percent = float64(t.done) * 100 / float64(t.total)
	}
	if t.p.sampler.ShouldLog(percent, t.name) {
		attrs := []logging.Attr{
			logging.String("file", t.name),
			logging.String("received", humanBytes(t.done)),
		}
		if t.total > 0 {
			attrs = append(attrs,
				logging.String("total", humanBytes(t.total)),
				logging.Int("percent", int(percent)),
			)
		}
		t.p.logger.Info("download progress", logging.Args(attrs...)...)
	}
	return len(b), nil
}

func (t *logTracker) Finish() {}

func humanBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(n))
}

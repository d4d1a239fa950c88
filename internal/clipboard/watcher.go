package clipboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/sunbk201/xlink/internal/log"
	"github.com/sunbk201/xlink/internal/rewrite"
)

// Rewriter evaluates a link against the current rewrite config.
type Rewriter interface {
	Evaluate(raw string) rewrite.Outcome
}

type Recorder interface {
	Record(o rewrite.Outcome)
}

type Options struct {
	Interval   time.Duration
	StripQuery bool
	Recorder   Recorder
}

// Watcher polls the clipboard and replaces a freshly copied source link with
// its rewritten form.
type Watcher struct {
	cb   Clipboard
	rw   Rewriter
	opts Options

	last      string
	readError bool
}

func NewWatcher(cb Clipboard, rw Rewriter, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	return &Watcher{cb: cb, rw: rw, opts: opts}
}

// Prime remembers the current clipboard so that content present before the
// watcher started is left alone.
func (w *Watcher) Prime() error {
	text, err := w.cb.ReadAll()
	if err != nil {
		return err
	}
	w.last = text
	return nil
}

// Poll handles one clipboard read. It reports whether the clipboard was
// written. Content already seen, including our own writes, is skipped.
func (w *Watcher) Poll() (rewrite.Outcome, bool, error) {
	text, err := w.cb.ReadAll()
	if err != nil {
		return rewrite.Outcome{}, false, err
	}
	if text == w.last {
		return rewrite.Outcome{}, false, nil
	}
	w.last = text

	link := ExtractURL(text)
	if link == "" {
		return rewrite.Outcome{}, false, nil
	}

	candidate := link
	if w.opts.StripQuery && rewrite.IsSourceURL(link) {
		candidate = StripQuery(link)
	}

	o := w.rw.Evaluate(candidate)
	log.LogOutcome("clipboard", o)
	if w.opts.Recorder != nil {
		w.opts.Recorder.Record(o)
	}

	if o.Output == link {
		return o, false, nil
	}
	if err := w.cb.WriteAll(o.Output); err != nil {
		return o, false, err
	}
	w.last = o.Output
	return o, true, nil
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Prime(); err != nil {
		slog.Warn("Clipboard read", slog.Any("error", err))
	}
	slog.Info("Clipboard watcher started", slog.Duration("interval", w.opts.Interval), slog.Bool("strip_query", w.opts.StripQuery))

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Clipboard watcher stopped")
			return nil
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watcher) tick() {
	_, wrote, err := w.Poll()
	switch {
	case err != nil && !w.readError:
		w.readError = true
		slog.Warn("Clipboard poll", slog.Any("error", err))
	case err == nil && w.readError:
		w.readError = false
		slog.Info("Clipboard available again")
	}
	if wrote {
		slog.Debug("Clipboard updated")
	}
}

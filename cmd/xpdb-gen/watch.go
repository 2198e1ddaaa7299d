package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/cli"
	"github.com/hlop3z/xpdb/internal/fingerprint"
)

// DebounceDelay collapses the burst of events an editor emits for one save.
const DebounceDelay = 100 * time.Millisecond

// watch generates once, then again after every write to the schema file,
// until ctx is cancelled. Generation errors are reported and watching goes on.
func watch(ctx context.Context, j *job, stdout, stderr io.Writer, logger *slog.Logger) error {
	abs, err := filepath.Abs(j.schema)
	if err != nil {
		return alerr.Wrap(alerr.ErrWatch, err, "cannot resolve schema path").WithFile(j.schema)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return alerr.Wrap(alerr.ErrWatch, err, "failed to start file watcher")
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return alerr.Wrap(alerr.ErrWatch, err, "failed to watch schema directory").WithFile(j.schema)
	}

	prev := j.regenerate(nil, stdout, stderr, logger)
	fmt.Fprintf(stdout, "%s %s\n", cli.Dim("watching"), cli.FilePath(j.schema))

	d := newDebouncer(DebounceDelay)
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("watch stopped", "schema", j.schema)
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			logger.Debug("schema event", "op", ev.Op.String())
			d.Trigger()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)

		case <-d.C:
			prev = j.regenerate(prev, stdout, stderr, logger)
		}
	}
}

// regenerate runs the job and reports which tables changed since prev. It
// returns the schema to compare the next run against.
func (j *job) regenerate(prev *ast.Schema, stdout, stderr io.Writer, logger *slog.Logger) *ast.Schema {
	m, err := j.run(stdout, stderr, logger)
	if err != nil {
		fmt.Fprint(stderr, cli.FormatError(err))
		return prev
	}
	if prev != nil {
		if summary := changeSummary(prev, m.Schema); summary != "" {
			fmt.Fprintf(stdout, "%s %s\n", cli.Accent("↻"), summary)
			logger.Info("schema changed", "summary", summary)
		}
	}
	return m.Schema
}

// changeSummary describes the table-level difference between two schemas,
// e.g. "added tags; modified users". Empty means nothing changed.
func changeSummary(before, after *ast.Schema) string {
	old, err := fingerprint.Compute(before)
	if err != nil {
		return ""
	}
	cur, err := fingerprint.Compute(after)
	if err != nil {
		return ""
	}
	cmp := fingerprint.Compare(old, cur)
	if cmp.Match {
		return ""
	}

	var parts []string
	for _, p := range []struct {
		label  string
		tables []string
	}{
		{"added", cmp.Added},
		{"modified", cmp.Modified},
		{"removed", cmp.Removed},
	} {
		if len(p.tables) > 0 {
			parts = append(parts, p.label+" "+strings.Join(p.tables, ", "))
		}
	}
	return strings.Join(parts, "; ")
}

// ----------------------------------------------------------------------------
// Debouncer
// ----------------------------------------------------------------------------

// debouncer delivers one value on C once Trigger has not been called for the
// configured delay.
type debouncer struct {
	C chan struct{}

	delay time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{C: make(chan struct{}, 1), delay: delay}
}

// Trigger restarts the quiet period.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.C <- struct{}{}:
		default:
		}
	})
}

// Stop cancels a pending delivery.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

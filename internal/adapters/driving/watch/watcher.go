// Package watch ingests files into memory as they appear or change in a
// watched directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driving"
	"github.com/recallhq/recall/internal/logger"
	"github.com/recallhq/recall/internal/normalise"
)

// defaultDebounce is how long a file must stay quiet before ingestion.
// Editors produce bursts of writes for a single save.
const defaultDebounce = 500 * time.Millisecond

// defaultExtensions are the file types picked up by the watcher.
var defaultExtensions = []string{".txt", ".md"}

// Watcher ingests matching files from a directory on create and write.
type Watcher struct {
	ingestor driving.Ingestor
	scope    domain.Scope
	debounce time.Duration
	exts     map[string]bool

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the quiet period before a changed file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions overrides the file extensions the watcher picks up.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		if len(exts) == 0 {
			return
		}
		w.exts = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.exts[strings.ToLower(e)] = true
		}
	}
}

// New creates a watcher that ingests into the given scope.
func New(ingestor driving.Ingestor, scope domain.Scope, opts ...Option) (*Watcher, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("watch: ingestor is required")
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	w := &Watcher{
		ingestor: ingestor,
		scope:    scope,
		debounce: defaultDebounce,
		exts:     make(map[string]bool, len(defaultExtensions)),
		timers:   make(map[string]*time.Timer),
	}
	for _, e := range defaultExtensions {
		w.exts[e] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches dir until the context is cancelled. Matching files already
// present are ingested once at startup.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch: %s is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch: adding %s: %w", dir, err)
	}

	w.ingestExisting(ctx, dir)
	logger.Info("Watching %s for %v files", dir, keys(w.exts))

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// ingestExisting indexes the matching files already in the directory.
func (w *Watcher) ingestExisting(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("Could not list %s: %v", dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if w.matches(path) {
			w.ingestFile(ctx, path)
		}
	}
}

// schedule (re)arms the debounce timer for a path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.ingestFile(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}

// ingestFile reads and ingests one file. Failures are logged, not fatal:
// the watcher keeps running.
func (w *Watcher) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Could not read %s: %v", path, err)
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return
	}

	report, err := w.ingestor.Ingest(ctx, normalise.File(path, string(data)), w.scope, filepath.Base(path))
	if err != nil {
		logger.Warn("Ingest of %s failed: %v", path, err)
		return
	}
	if report.Partial() {
		logger.Warn("%s partially indexed: %d segments failed", path, report.FailedCount)
		return
	}
	logger.Info("Ingested %s (%d segments)", path, report.SegmentCount)
}

func (w *Watcher) matches(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Package watcher feeds PDFs dropped into the input directory to the
// pipeline. A single producer (startup sweep plus fsnotify events)
// enqueues paths onto a bounded queue consumed by a fixed pool of
// workers, so a burst of drops can never spawn unbounded pipeline
// runs.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/mkurosawa/receiptd/internal/config"
	"github.com/mkurosawa/receiptd/internal/pipeline"
)

// Runner executes the pipeline for a PDF. Implemented by
// pipeline.Engine.
type Runner interface {
	Run(ctx context.Context, pdfPath string) pipeline.Context
	RecordDuplicate(ctx context.Context, pdfPath string) pipeline.Context
}

// DuplicateChecker reports whether a filename was already processed
// successfully. Implemented by store.Store.
type DuplicateChecker interface {
	Exists(ctx context.Context, filename string) (bool, error)
}

// Watcher owns the input directory: it discovers PDFs, waits for them
// to stop growing, and dispatches them to the pipeline workers.
type Watcher struct {
	cfg     config.WatcherConfig
	storage config.StorageConfig
	runner  Runner
	checker DuplicateChecker
	logger  *slog.Logger

	queue chan string

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a Watcher over the configured input directory.
func New(cfg config.WatcherConfig, storage config.StorageConfig, runner Runner, checker DuplicateChecker, logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:     cfg,
		storage: storage,
		runner:  runner,
		checker: checker,
		logger:  logger.With("system", "watcher"),
		queue:   make(chan string, cfg.QueueSize),
		seen:    make(map[string]struct{}),
	}
}

// Run watches the input directory until ctx is cancelled. Files
// already present at startup are swept into the queue before event
// processing begins, so drops made while the service was down are not
// lost.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.storage.InputDir); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.cfg.Workers; i++ {
		g.Go(func() error {
			return w.work(ctx)
		})
	}

	g.Go(func() error {
		defer close(w.queue)
		w.sweep()
		return w.watch(ctx, fw)
	})

	w.logger.Info("watching input directory", "dir", w.storage.InputDir, "workers", w.cfg.Workers)
	return g.Wait()
}

// sweep enqueues PDFs already sitting in the input directory.
func (w *Watcher) sweep() {
	entries, err := os.ReadDir(w.storage.InputDir)
	if err != nil {
		w.logger.Error("input directory sweep failed", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.enqueue(filepath.Join(w.storage.InputDir, entry.Name()))
	}
}

func (w *Watcher) watch(ctx context.Context, fw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				w.enqueue(event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("filesystem watch error", "error", err)
		}
	}
}

// enqueue queues a path for processing unless it is not a PDF, is
// already queued, or the queue is full. A dropped path clears its seen
// mark so a later event for the same file can retry.
func (w *Watcher) enqueue(path string) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return
	}
	if !w.markSeen(path) {
		return
	}

	select {
	case w.queue <- path:
	default:
		w.logger.Warn("queue full, dropping file event", "path", path)
		w.clearSeen(path)
	}
}

func (w *Watcher) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-w.queue:
			if !ok {
				return nil
			}
			w.handle(ctx, path)
		}
	}
}

// handle runs one queued file through stability, duplicate check, and
// the pipeline. Whatever happens, a file still in the input directory
// afterwards is moved to the error directory under its original name
// so the watch folder never accumulates stuck files.
func (w *Watcher) handle(ctx context.Context, path string) {
	defer w.clearSeen(path)

	if !w.waitStable(ctx, path) {
		w.logger.Debug("file never stabilized or vanished", "path", path)
		return
	}

	// Shutdown stops the observer but lets the run in progress finish,
	// so the pipeline gets a context that survives cancellation.
	runCtx := context.WithoutCancel(ctx)

	filename := filepath.Base(path)
	exists, err := w.checker.Exists(runCtx, filename)
	if err != nil {
		w.logger.Error("duplicate check failed", "filename", filename, "error", err)
		w.moveLeftover(path)
		return
	}

	var result pipeline.Context
	if exists {
		result = w.runner.RecordDuplicate(runCtx, path)
	} else {
		result = w.runner.Run(runCtx, path)
	}

	w.logger.Info("file processed",
		"filename", filename,
		"status", result.Status.String(),
		"id", result.RecordID,
	)
	w.moveLeftover(path)
}

func (w *Watcher) moveLeftover(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	dst := filepath.Join(w.storage.ErrorDir, filepath.Base(path))
	if err := pipeline.MoveFile(path, dst); err != nil {
		w.logger.Error("leftover move failed", "path", path, "error", err)
		return
	}
	w.logger.Warn("moved unfiled pdf to error directory", "path", path)
}

func (w *Watcher) markSeen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[path]; ok {
		return false
	}
	w.seen[path] = struct{}{}
	return true
}

func (w *Watcher) clearSeen(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.seen, path)
}

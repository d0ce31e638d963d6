// Package watcher ingests supported files as they appear or change in a
// directory tree.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docrag/internal/domain"
	"docrag/internal/extract"
	"docrag/internal/logger"
)

// DefaultDebounce coalesces the burst of events editors emit for one save.
const DefaultDebounce = 500 * time.Millisecond

// Ingester is the part of the orchestrator the watcher needs.
type Ingester interface {
	IngestBatch(ctx context.Context, sources []domain.Source) domain.BatchReport
}

type Options struct {
	Debounce time.Duration
	// OnReport, when set, receives the report of every ingestion the watcher triggers.
	OnReport func(path string, report domain.BatchReport)
}

// Watcher ingests each distinct file content once. Documents are immutable,
// so a changed file is ingested as a new document and removals are ignored.
type Watcher struct {
	ingester Ingester
	debounce time.Duration
	onReport func(string, domain.BatchReport)

	mu      sync.Mutex
	seen    map[string]string
	pending map[string]*time.Timer
}

func New(ingester Ingester, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		ingester: ingester,
		debounce: opts.Debounce,
		onReport: opts.OnReport,
		seen:     make(map[string]string),
		pending:  make(map[string]*time.Timer),
	}
}

// Scan ingests every supported file already under root.
func (w *Watcher) Scan(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && extract.Supported(path) {
			w.process(ctx, path)
		}
		return nil
	})
}

// Run watches root and its subdirectories until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, root string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := addTree(fw, root); err != nil {
		return err
	}
	logger.Info("watching %s", root)

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)
		case <-ctx.Done():
			w.stopPending()
			return nil
		}
	}
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(fw, event.Name); err != nil {
				logger.Warn("watcher: %v", err)
			}
			return
		}
	}
	if !extract.Supported(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		w.schedule(ctx, event.Name)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		logger.Debug("watcher: %s removed; its documents stay in the knowledge base", event.Name)
	}
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.process(ctx, path)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// process ingests path unless its current content was already ingested.
// Content whose ingestion failed is not remembered, so the next event or scan
// retries it.
func (w *Watcher) process(ctx context.Context, path string) {
	hash, err := fileHash(path)
	if err != nil {
		logger.Warn("watcher: hash %s: %v", path, err)
		return
	}
	w.mu.Lock()
	unchanged := w.seen[path] == hash
	w.mu.Unlock()
	if unchanged {
		logger.Debug("watcher: %s unchanged", path)
		return
	}

	src, err := extract.File(path)
	src.Err = err
	report := w.ingester.IngestBatch(ctx, []domain.Source{src})
	if failed := report.Failed(); len(failed) > 0 {
		logger.Warn("watcher: %s not ingested, will retry on next change: %v", path, failed[0].Err)
	} else {
		w.mu.Lock()
		w.seen[path] = hash
		w.mu.Unlock()
		logger.Info("watcher: ingested %s (%d chunks)", path, report.Chunks())
	}
	if w.onReport != nil {
		w.onReport(path, report)
	}
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

package library

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow is how long the watcher waits after the last filesystem
// event before triggering a rescan. Copies and downloads generate bursts
// of events; one scan at the end covers them all.
const debounceWindow = 2 * time.Second

// Watcher observes the music directory and schedules a library rescan
// when files change. New subdirectories are added to the watch set as
// they appear.
type Watcher struct {
	root     string
	scanner  *Scanner
	logger   *slog.Logger
	debounce time.Duration

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher over the library root.
func NewWatcher(root string, scanner *Scanner, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     filepath.Clean(root),
		scanner:  scanner,
		logger:   logger,
		debounce: debounceWindow,
		fsw:      fsw,
	}, nil
}

// Start registers the watch set and launches the event loop.
func (w *Watcher) Start() error {
	if err := w.watchTree(w.root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)

	w.logger.Info("watching music directory", "root", w.root)
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return w.fsw.Close()
}

// watchTree adds dir and every non-hidden subdirectory to the watch set.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	// The timer is armed on the first relevant event and re-armed on
	// every subsequent one; it fires only after a quiet period.
	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				// A new directory needs its own watch before anything
				// inside it can be seen.
				_ = w.watchTree(event.Name)
			}
			debounce.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", "error", err)

		case <-debounce.C:
			if _, err := w.scanner.Scan(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("rescan after filesystem change failed", "error", err)
			}
		}
	}
}

// relevant filters out events the library does not care about: chmod
// noise, hidden files, and non-audio files that are not directories.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != "" && !audioExtensions[ext] {
		return false
	}
	return true
}

package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/quaverapp/quaver-server/internal/config"
	"github.com/quaverapp/quaver-server/internal/library"
	"github.com/quaverapp/quaver-server/internal/logger"
)

// StoreHandle wraps the track store with shutdown capability.
type StoreHandle struct {
	*library.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the badger-backed track store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Library.IndexPath, "db")
	store, err := library.NewStore(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	return &StoreHandle{Store: store}, nil
}

// ProvideScanner provides the library scanner and kicks off the initial
// scan in the background when a music path is configured.
func ProvideScanner(i do.Injector) (*library.Scanner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)

	scanner := library.NewScanner(cfg.Library.MusicPath, storeHandle.Store, searchHandle.SearchIndex, log.Logger)

	if cfg.Library.MusicPath != "" {
		go func() {
			if _, err := scanner.Scan(context.Background()); err != nil {
				log.Error("Initial library scan failed", "error", err)
			}
		}()
	} else {
		log.Info("No music path configured, serving existing index only")
	}

	return scanner, nil
}

// WatcherHandle wraps the filesystem watcher with shutdown capability.
// The watcher is nil when no music path is configured.
type WatcherHandle struct {
	*library.Watcher
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	return h.Stop()
}

// ProvideWatcher provides the filesystem watcher over the music path.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	scanner := do.MustInvoke[*library.Scanner](i)

	if cfg.Library.MusicPath == "" {
		return &WatcherHandle{}, nil
	}

	w, err := library.NewWatcher(cfg.Library.MusicPath, scanner, log.Logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}

	return &WatcherHandle{Watcher: w}, nil
}

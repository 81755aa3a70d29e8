package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quaverapp/quaver-server/internal/domain"
	"github.com/quaverapp/quaver-server/internal/id"
)

// scanWorkers bounds concurrent per-file work during a scan.
const scanWorkers = 4

// audioExtensions are the file suffixes treated as playable tracks.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".wma":  true,
	".aiff": true,
	".alac": true,
}

// Indexer receives track updates for full-text search. The scanner and
// watcher feed it; the search package implements it.
type Indexer interface {
	IndexTrack(t *domain.Track) error
	DeleteTrack(trackID string) error
}

// ScanResult summarizes one library scan.
type ScanResult struct {
	ScanID   string        `json:"scanId"`
	Indexed  int           `json:"indexed"`
	Removed  int           `json:"removed"`
	Duration time.Duration `json:"duration"`
}

// Scanner walks the music directory and reconciles the track store and
// search index against what is actually on disk.
type Scanner struct {
	root    string
	store   *Store
	search  Indexer
	logger  *slog.Logger
	workers int
}

// NewScanner creates a scanner rooted at the music directory. search
// may be nil to skip full-text indexing.
func NewScanner(root string, store *Store, search Indexer, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		root:    filepath.Clean(root),
		store:   store,
		search:  search,
		logger:  logger,
		workers: scanWorkers,
	}
}

// TrackID derives the stable path-like identifier for an absolute file
// path under the library root.
func (sc *Scanner) TrackID(path string) (string, error) {
	rel, err := filepath.Rel(sc.root, path)
	if err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(rel), nil
}

// Scan walks the library root, indexes every audio file found, and
// removes records whose backing file no longer exists.
func (sc *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	scanID := id.MustGenerate("scan")
	start := time.Now()
	sc.logger.Info("library scan started", "scan_id", scanID, "root", sc.root)

	var paths []string
	err := filepath.WalkDir(sc.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			sc.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != sc.root {
				return filepath.SkipDir
			}
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.workers)
	for _, path := range paths {
		g.Go(func() error {
			return sc.indexFile(gctx, path)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	removed, err := sc.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		ScanID:   scanID,
		Indexed:  len(paths),
		Removed:  removed,
		Duration: time.Since(start),
	}
	sc.logger.Info("library scan finished",
		"scan_id", scanID,
		"indexed", result.Indexed,
		"removed", result.Removed,
		"duration", result.Duration,
	)
	return result, nil
}

// indexFile builds and stores the track record for one audio file.
// Metadata is derived from the path: title from the file name, album
// and artist from the two enclosing directories when present.
func (sc *Scanner) indexFile(ctx context.Context, path string) error {
	trackID, err := sc.TrackID(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		// Vanished between walk and stat; the reconcile pass handles it.
		return nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	track := &domain.Track{
		ID:        trackID,
		Path:      path,
		Title:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Suffix:    strings.TrimPrefix(ext, "."),
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}

	parts := strings.Split(strings.TrimPrefix(trackID, "/"), "/")
	if len(parts) >= 3 {
		track.Artist = parts[len(parts)-3]
		track.Album = parts[len(parts)-2]
	} else if len(parts) == 2 {
		track.Artist = parts[0]
	}

	if err := sc.store.PutTrack(ctx, track); err != nil {
		return err
	}
	if sc.search != nil {
		if err := sc.search.IndexTrack(track); err != nil {
			sc.logger.Warn("search indexing failed", "track", trackID, "error", err)
		}
	}
	return nil
}

// reconcile removes records whose backing file is gone from disk.
func (sc *Scanner) reconcile(ctx context.Context) (int, error) {
	var stale []string
	err := sc.store.ForEachTrack(ctx, func(t *domain.Track) error {
		if t.IsDir || t.Path == "" {
			return nil
		}
		if _, err := os.Stat(t.Path); os.IsNotExist(err) {
			stale = append(stale, t.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, trackID := range stale {
		if err := sc.store.DeleteTrack(ctx, trackID); err != nil {
			return 0, err
		}
		if sc.search != nil {
			if err := sc.search.DeleteTrack(trackID); err != nil {
				sc.logger.Warn("search removal failed", "track", trackID, "error", err)
			}
		}
		sc.logger.Debug("removed vanished track", "track", trackID)
	}
	return len(stale), nil
}

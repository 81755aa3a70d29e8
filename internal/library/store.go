// Package library maintains the music library index: a badger-backed
// track store keyed by path-like identifiers, a filesystem scanner that
// populates it, and a watcher that keeps it current.
package library

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/quaverapp/quaver-server/internal/domain"
	apperrors "github.com/quaverapp/quaver-server/internal/errors"
)

const trackPrefix = "track:"

// Store wraps a Badger database holding the track index.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the index database at path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Survive crashes without index corruption
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Info("library index opened", "path", path)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func trackKey(id string) []byte {
	return []byte(trackPrefix + id)
}

// PutTrack inserts or replaces a track record.
func (s *Store) PutTrack(_ context.Context, t *domain.Track) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal track %s: %w", t.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(trackKey(t.ID), data)
	})
}

// GetTrack returns the track with the given ID.
func (s *Store) GetTrack(_ context.Context, id string) (*domain.Track, error) {
	var track domain.Track
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(trackKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &track)
		})
	})
	if err != nil {
		if apperrors.Is(err, badger.ErrKeyNotFound) {
			return nil, apperrors.NotFoundf("unknown item %q", id)
		}
		return nil, fmt.Errorf("get track %s: %w", id, err)
	}
	return &track, nil
}

// DeleteTrack removes a track record. Deleting an absent track is not
// an error.
func (s *Store) DeleteTrack(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(trackKey(id))
	})
}

// Resolve maps an item ID to its playable media source. Directories and
// unknown IDs resolve to a not-found error; the streaming layer treats
// both the same way.
func (s *Store) Resolve(ctx context.Context, itemID string) (*domain.MediaSource, error) {
	track, err := s.GetTrack(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if track.IsDir {
		return nil, apperrors.NotFoundf("item %q is a directory", itemID)
	}
	return track.Source(), nil
}

// ListDirectory returns the immediate children of a directory ID:
// tracks directly inside it plus synthesized directory entries for
// deeper descendants. The root directory is "/".
func (s *Store) ListDirectory(_ context.Context, dirID string) ([]*domain.Track, error) {
	prefix := strings.TrimSuffix(dirID, "/") + "/"

	children := make(map[string]*domain.Track)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		scanPrefix := trackKey(prefix)
		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), trackPrefix)
			rest := strings.TrimPrefix(id, prefix)

			if idx := strings.Index(rest, "/"); idx >= 0 {
				// Deeper descendant: synthesize a directory entry.
				childID := prefix + rest[:idx]
				if _, ok := children[childID]; !ok {
					children[childID] = &domain.Track{
						ID:    childID,
						Title: rest[:idx],
						IsDir: true,
					}
				}
				continue
			}

			var track domain.Track
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &track)
			}); err != nil {
				return err
			}
			children[track.ID] = &track
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", dirID, err)
	}

	out := make([]*domain.Track, 0, len(children))
	for _, t := range children {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ForEachTrack iterates all track records. Returning an error from fn
// aborts the iteration.
func (s *Store) ForEachTrack(_ context.Context, fn func(*domain.Track) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(trackPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var track domain.Track
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &track)
			}); err != nil {
				return err
			}
			if err := fn(&track); err != nil {
				return err
			}
		}
		return nil
	})
}

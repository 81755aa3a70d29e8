package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/quaverapp/quaver-server/internal/domain"
)

// mappingVersion is incremented whenever the index mapping changes,
// forcing a rebuild on startup when the stored version differs.
const mappingVersion = "1"

// SearchIndex wraps a Bleve index with track-specific operations.
//
// All public methods are safe for concurrent use; the mutex guards the
// index handle across rebuilds.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string
	Logger   *slog.Logger
}

// NewSearchIndex opens the index at DataPath, creating or rebuilding it
// when missing, corrupted, or written with an older mapping.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	needsRebuild := false

	if _, statErr := os.Stat(indexPath); statErr == nil {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			logger.Info("search index mapping outdated, rebuilding",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		} else {
			var err error
			index, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing search index, recreating", "error", err)
				needsRebuild = true
			}
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create search index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", indexPath)
	} else {
		logger.Info("opened search index", "path", indexPath)
	}

	return &SearchIndex{index: index, path: indexPath, logger: logger}, nil
}

// Close closes the index and releases its resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexTrack adds or updates one track in the index.
func (s *SearchIndex) IndexTrack(t *domain.Track) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := NewTrackDocument(t)
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteTrack removes a track from the index.
func (s *SearchIndex) DeleteTrack(trackID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(trackID)
}

// DocumentCount returns the number of indexed tracks.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Hit is a single search result.
type Hit struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title,omitempty"`
	Artist string  `json:"artist,omitempty"`
	Album  string  `json:"album,omitempty"`
}

// Search runs a free-text query over the index and returns up to limit
// ranked hits.
func (s *SearchIndex) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	request := bleve.NewSearchRequestOptions(buildTrackQuery(text), limit, 0, false)
	request.Fields = []string{"title", "artist", "album"}

	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["title"].(string); ok {
			hit.Title = v
		}
		if v, ok := h.Fields["artist"].(string); ok {
			hit.Artist = v
		}
		if v, ok := h.Fields["album"].(string); ok {
			hit.Album = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// buildTrackQuery matches across title, artist and album, with fuzzy
// matching for typo tolerance and a prefix query for autocomplete.
// Title matches are boosted over artist and album.
func buildTrackQuery(text string) query.Query {
	queries := []query.Query{}

	titleMatch := bleve.NewMatchQuery(text)
	titleMatch.SetField("title")
	titleMatch.SetBoost(3.0)
	queries = append(queries, titleMatch)

	artistMatch := bleve.NewMatchQuery(text)
	artistMatch.SetField("artist")
	artistMatch.SetBoost(1.5)
	queries = append(queries, artistMatch)

	albumMatch := bleve.NewMatchQuery(text)
	albumMatch.SetField("album")
	queries = append(queries, albumMatch)

	fuzzy := bleve.NewFuzzyQuery(text)
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("title")
	fuzzy.SetBoost(0.8)
	queries = append(queries, fuzzy)

	if len(text) >= 2 {
		prefix := bleve.NewPrefixQuery(strings.ToLower(text))
		prefix.SetField("title")
		prefix.SetBoost(0.5)
		queries = append(queries, prefix)
	}

	return bleve.NewDisjunctionQuery(queries...)
}

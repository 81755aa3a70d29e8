package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaverapp/quaver-server/internal/domain"
)

func newTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	idx, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func indexTracks(t *testing.T, idx *SearchIndex, tracks ...*domain.Track) {
	t.Helper()
	for _, tr := range tracks {
		require.NoError(t, idx.IndexTrack(tr))
	}
}

func TestSearchByTitle(t *testing.T) {
	idx := newTestIndex(t)
	indexTracks(t, idx,
		&domain.Track{ID: "/a/wish.flac", Title: "Wish You Were Here", Artist: "Pink Floyd", Album: "Wish You Were Here"},
		&domain.Track{ID: "/a/time.flac", Title: "Time", Artist: "Pink Floyd", Album: "The Dark Side of the Moon"},
	)

	hits, err := idx.Search(context.Background(), "wish", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "/a/wish.flac", hits[0].ID)
	assert.Equal(t, "Wish You Were Here", hits[0].Title)
}

func TestSearchByArtist(t *testing.T) {
	idx := newTestIndex(t)
	indexTracks(t, idx,
		&domain.Track{ID: "/p/song.flac", Title: "Song", Artist: "Radiohead", Album: "OK"},
		&domain.Track{ID: "/q/tune.flac", Title: "Tune", Artist: "Björk", Album: "Debut"},
	)

	hits, err := idx.Search(context.Background(), "radiohead", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/p/song.flac", hits[0].ID)
}

func TestSearchFuzzyMatch(t *testing.T) {
	idx := newTestIndex(t)
	indexTracks(t, idx,
		&domain.Track{ID: "/a/paranoid.flac", Title: "Paranoid", Artist: "Black Sabbath"},
	)

	// One typo away from "Paranoid".
	hits, err := idx.Search(context.Background(), "paranoud", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "/a/paranoid.flac", hits[0].ID)
}

func TestSearchPrefixAutocomplete(t *testing.T) {
	idx := newTestIndex(t)
	indexTracks(t, idx,
		&domain.Track{ID: "/a/holiday.flac", Title: "Holiday"},
	)

	hits, err := idx.Search(context.Background(), "holi", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "/a/holiday.flac", hits[0].ID)
}

func TestSearchLimit(t *testing.T) {
	idx := newTestIndex(t)
	for _, id := range []string{"/1.flac", "/2.flac", "/3.flac"} {
		indexTracks(t, idx, &domain.Track{ID: id, Title: "Common Title"})
	}

	hits, err := idx.Search(context.Background(), "common", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchNoResults(t *testing.T) {
	idx := newTestIndex(t)
	indexTracks(t, idx, &domain.Track{ID: "/a.flac", Title: "Something"})

	hits, err := idx.Search(context.Background(), "zzzzqqqq", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteTrack(t *testing.T) {
	idx := newTestIndex(t)
	indexTracks(t, idx, &domain.Track{ID: "/a.flac", Title: "Ephemeral"})

	require.NoError(t, idx.DeleteTrack("/a.flac"))

	hits, err := idx.Search(context.Background(), "ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndexReopens(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, idx.IndexTrack(&domain.Track{ID: "/a.flac", Title: "Persisted"}))
	require.NoError(t, idx.Close())

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	hits, err := reopened.Search(context.Background(), "persisted", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/a.flac", hits[0].ID)
}

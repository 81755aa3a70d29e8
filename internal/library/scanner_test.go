package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaverapp/quaver-server/internal/domain"
)

// recordingIndexer captures index and delete calls for assertions.
type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
}

func (r *recordingIndexer) IndexTrack(t *domain.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, t.ID)
	return nil
}

func (r *recordingIndexer) DeleteTrack(trackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, trackID)
	return nil
}

func writeAudioFile(t *testing.T, root string, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func TestScannerScan(t *testing.T) {
	root := t.TempDir()
	writeAudioFile(t, root, "Artist/Album/01 - Song.flac")
	writeAudioFile(t, root, "Artist/Album/02 - Other.mp3")
	writeAudioFile(t, root, "loose.ogg")
	writeAudioFile(t, root, "Artist/Album/cover.jpg") // not audio
	writeAudioFile(t, root, ".hidden/secret.flac")    // hidden dir skipped

	store := newTestStore(t)
	indexer := &recordingIndexer{}
	sc := NewScanner(root, store, indexer, nil)

	result, err := sc.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Indexed)
	assert.Zero(t, result.Removed)
	assert.NotEmpty(t, result.ScanID)

	track, err := store.GetTrack(context.Background(), "/Artist/Album/01 - Song.flac")
	require.NoError(t, err)
	assert.Equal(t, "01 - Song", track.Title)
	assert.Equal(t, "Artist", track.Artist)
	assert.Equal(t, "Album", track.Album)
	assert.Equal(t, "flac", track.Suffix)
	assert.Equal(t, int64(5), track.Size)

	loose, err := store.GetTrack(context.Background(), "/loose.ogg")
	require.NoError(t, err)
	assert.Empty(t, loose.Artist)

	assert.ElementsMatch(t, []string{
		"/Artist/Album/01 - Song.flac",
		"/Artist/Album/02 - Other.mp3",
		"/loose.ogg",
	}, indexer.indexed)
}

func TestScannerRemovesVanishedTracks(t *testing.T) {
	root := t.TempDir()
	writeAudioFile(t, root, "keep.flac")
	gone := writeAudioFile(t, root, "gone.flac")

	store := newTestStore(t)
	indexer := &recordingIndexer{}
	sc := NewScanner(root, store, indexer, nil)

	_, err := sc.Scan(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))

	result, err := sc.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Removed)
	assert.Contains(t, indexer.deleted, "/gone.flac")

	_, err = store.GetTrack(context.Background(), "/gone.flac")
	assert.Error(t, err)
	_, err = store.GetTrack(context.Background(), "/keep.flac")
	assert.NoError(t, err)
}

// Registered cue tracks reference a physical file that the walk never
// visits directly; they must survive reconciliation while the file
// exists and be removed once it is gone.
func TestScannerPreservesCueTracks(t *testing.T) {
	root := t.TempDir()
	disc := writeAudioFile(t, root, "disc.flac")

	store := newTestStore(t)
	sc := NewScanner(root, store, nil, nil)

	cue := &domain.Track{
		ID:          "/disc.flac#1",
		Path:        disc,
		Title:       "First",
		IsCue:       true,
		CueStart:    0,
		CueDuration: 180,
	}
	require.NoError(t, store.PutTrack(context.Background(), cue))

	_, err := sc.Scan(context.Background())
	require.NoError(t, err)

	_, err = store.GetTrack(context.Background(), "/disc.flac#1")
	assert.NoError(t, err)

	require.NoError(t, os.Remove(disc))

	result, err := sc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
}

func TestScannerTrackID(t *testing.T) {
	root := t.TempDir()
	sc := NewScanner(root, nil, nil, nil)

	id, err := sc.TrackID(filepath.Join(root, "Artist", "01.flac"))
	require.NoError(t, err)
	assert.Equal(t, "/Artist/01.flac", id)
}

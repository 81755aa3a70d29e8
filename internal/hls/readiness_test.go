package hls

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quaverapp/quaver-server/internal/errors"
)

func testProbe() *Probe {
	return &Probe{
		MinSegments: 2,
		Timeout:     2 * time.Second,
		Poll:        10 * time.Millisecond,
		Fallback:    500 * time.Millisecond,
	}
}

func alive() bool { return true }
func dead() bool  { return false }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestProbeReadyWithMinSegments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PlaylistName, "#EXTM3U\n#EXTINF:3.0,\nsegment_000.ts\n#EXTINF:3.0,\nsegment_001.ts\n")
	writeFile(t, dir, "segment_000.ts", "x")
	writeFile(t, dir, "segment_001.ts", "x")

	err := testProbe().Wait(context.Background(), dir, alive)
	assert.NoError(t, err)
}

// The freshest referenced segment must exist with real bytes before the
// playlist is considered servable.
func TestProbeWaitsForLastSegmentOnDisk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PlaylistName, "#EXTM3U\n#EXTINF:3.0,\nsegment_000.ts\n#EXTINF:3.0,\nsegment_001.ts\n")
	writeFile(t, dir, "segment_000.ts", "x")
	writeFile(t, dir, "segment_001.ts", "")

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "segment_001.ts"), []byte("x"), 0o644)
	}()

	start := time.Now()
	err := testProbe().Wait(context.Background(), dir, alive)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestProbeShortSourceEndedEarly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PlaylistName, "#EXTM3U\n#EXTINF:1.2,\nsegment_000.ts\n#EXT-X-ENDLIST\n")
	writeFile(t, dir, "segment_000.ts", "x")

	err := testProbe().Wait(context.Background(), dir, alive)
	assert.NoError(t, err)
}

func TestProbeSingleSegmentFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PlaylistName, "#EXTM3U\n#EXTINF:3.0,\nsegment_000.ts\n")
	writeFile(t, dir, "segment_000.ts", "x")

	p := testProbe()
	p.Fallback = 150 * time.Millisecond

	start := time.Now()
	err := p.Wait(context.Background(), dir, alive)
	require.NoError(t, err)

	// The single segment is only accepted after the fallback delay.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestProbeTranscoderDiedWithoutOutput(t *testing.T) {
	err := testProbe().Wait(context.Background(), t.TempDir(), dead)
	assert.ErrorIs(t, err, apperrors.ErrTranscoderNoOutput)
}

// A process that exits right after writing its output must not be
// reported as producing nothing.
func TestProbeTranscoderDiedAfterOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PlaylistName, "#EXTM3U\n#EXTINF:3.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n")
	writeFile(t, dir, "segment_000.ts", "x")

	err := testProbe().Wait(context.Background(), dir, dead)
	assert.NoError(t, err)
}

func TestProbeTimeout(t *testing.T) {
	p := testProbe()
	p.Timeout = 100 * time.Millisecond

	err := p.Wait(context.Background(), t.TempDir(), alive)
	assert.ErrorIs(t, err, apperrors.ErrReadinessTimeout)
}

func TestProbeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := testProbe().Wait(ctx, t.TempDir(), alive)
	assert.ErrorIs(t, err, context.Canceled)
}

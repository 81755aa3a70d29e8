package hls

import (
	"context"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/quaverapp/quaver-server/internal/errors"
)

// Probe decides when enough transcoder output exists for the server to
// answer the client's first playlist request.
type Probe struct {
	// MinSegments is the number of referenced segments required before
	// accepting. Requiring at least 2 avoids a known HLS client stall:
	// a single-segment playlist is reported as live with no next
	// segment and playback hangs around the 3-second mark.
	MinSegments int
	// Timeout bounds the whole wait.
	Timeout time.Duration
	// Poll is the tick interval.
	Poll time.Duration
	// Fallback accepts a single-segment playlist after this delay,
	// preferring a short start-up over a long one.
	Fallback time.Duration
}

// Wait blocks until the work directory holds enough output for a first
// response, or fails. running reports whether the transcoder process is
// still alive; when it has exited without producing anything the wait
// fails immediately instead of burning the full timeout.
func (p *Probe) Wait(ctx context.Context, dir string, running func() bool) error {
	playlistPath := filepath.Join(dir, PlaylistName)
	deadline := time.Now().Add(p.Timeout)
	fallbackAt := time.Now().Add(p.Fallback)

	ticker := time.NewTicker(p.Poll)
	defer ticker.Stop()

	for {
		segments, ended := readPlaylist(playlistPath)

		// Enough segments, and the freshest one is really on disk.
		if len(segments) >= p.MinSegments && segmentOnDisk(dir, segments[len(segments)-1]) {
			return nil
		}
		// Short source: the stream ended after a single segment.
		if len(segments) >= 1 && ended {
			return nil
		}
		// Single segment for a while now; accept rather than keep the
		// client waiting.
		if len(segments) >= 1 && time.Now().After(fallbackAt) {
			return nil
		}

		if !running() {
			// One final look: the process may have finished between
			// the read above and the liveness check.
			segments, _ = readPlaylist(playlistPath)
			for _, seg := range segments {
				if segmentOnDisk(dir, seg) {
					return nil
				}
			}
			return apperrors.ErrTranscoderNoOutput
		}

		if time.Now().After(deadline) {
			return apperrors.ErrReadinessTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readPlaylist parses the on-disk playlist, tolerating its absence.
func readPlaylist(path string) (segments []string, ended bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return parsePlaylist(string(data))
}

// segmentOnDisk reports whether the referenced segment exists with
// non-zero size.
func segmentOnDisk(dir, seg string) bool {
	info, err := os.Stat(filepath.Join(dir, filepath.Base(seg)))
	return err == nil && info.Size() > 0
}

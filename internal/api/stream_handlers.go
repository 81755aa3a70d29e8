package api

import (
	"net/http"
	"strconv"

	"github.com/quaverapp/quaver-server/internal/hls"
	"github.com/quaverapp/quaver-server/internal/http/response"
)

// defaultBitrateKbps is used when the client does not ask for a
// specific bitrate.
const defaultBitrateKbps = 128

// handleStreamPlaylist answers a playlist request, transcoding on
// demand.
// GET /rest/stream/hls.m3u8?id=...&bitRate=...&audioTrack=...
func (s *Server) handleStreamPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID := r.URL.Query().Get("id")
	if itemID == "" {
		response.BadRequest(w, "id is required", s.logger)
		return
	}

	bitrate := defaultBitrateKbps
	if raw := r.URL.Query().Get("bitRate"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.BadRequest(w, "bitRate must be a non-negative integer", s.logger)
			return
		}
		bitrate = parsed
	}

	variant := hls.Variant{
		BitrateKbps: bitrate,
		AudioTrack:  r.URL.Query().Get("audioTrack"),
	}

	playlist, err := s.streamer.GeneratePlaylist(ctx, itemID, variant, s.segmentBasePath())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	// Playlists must never be cached: the same URL serves a growing
	// playlist while the transcode is in flight.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	_, _ = w.Write([]byte(playlist))
}

// handleStreamSegment serves one cached HLS artifact by its key.
// GET /rest/stream/hls?key=...
func (s *Server) handleStreamSegment(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")

	path, mime, err := s.streamer.ServeSegment(key)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Content-Type", mime)
	http.ServeFile(w, r, path)
}

// segmentBasePath is the root-relative URL playlist segment references
// are rewritten to.
func (s *Server) segmentBasePath() string {
	return s.cfg.PathBase + "/rest/stream/hls"
}

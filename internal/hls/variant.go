// Package hls implements on-demand HLS transcoding with a two-level
// segment cache: an in-memory FIFO registry over per-key segment
// directories on disk. The Streamer facade spawns external transcoder
// processes, races the client's first playlist request against the
// transcoder's initial output, and serves segments from the cache.
package hls

import "strconv"

// defaultPart names the codec-default bitrate and the default audio
// track inside a variant key.
const defaultPart = "default"

// Variant is a bitrate+track selection distinguishing different
// transcodes of the same source item. A bitrate of 0 means
// "codec default".
type Variant struct {
	BitrateKbps int
	AudioTrack  string
}

// Key returns the canonical variant key, e.g. "128_default".
func (v Variant) Key() string {
	bitrate := defaultPart
	if v.BitrateKbps > 0 {
		bitrate = strconv.Itoa(v.BitrateKbps)
	}
	track := v.AudioTrack
	if track == "" {
		track = defaultPart
	}
	return bitrate + "_" + track
}

// CacheKey returns the canonical cache key for an item+variant pair.
// It doubles as the on-disk subpath under the cache root; item IDs are
// path-like, so directories nest.
func CacheKey(itemID string, v Variant) string {
	return itemID + "/" + v.Key()
}

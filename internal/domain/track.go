// Package domain defines the core entities of the Quaver music library.
package domain

import (
	"strings"
	"time"
)

// Track is an indexed library item. IDs are path-like strings relative to
// the library root ("/Artist/Album/01.flac") and are stable across restarts.
// A track may be virtual: a cue track is a (start, duration) slice of a
// larger physical audio file.
type Track struct {
	ID     string `json:"id"`
	Path   string `json:"path"` // Absolute path of the physical file
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Suffix string `json:"suffix,omitempty"` // File extension without the dot
	IsDir  bool   `json:"isDir,omitempty"`
	Size   int64  `json:"size,omitempty"`

	// Cue track fields. CueDuration of 0 means unknown (slice runs to EOF).
	IsCue       bool    `json:"isCue,omitempty"`
	CueStart    float64 `json:"cueStart,omitempty"`    // Seconds into the physical file
	CueDuration float64 `json:"cueDuration,omitempty"` // Seconds; 0 = unknown

	UpdatedAt time.Time `json:"updatedAt"`
}

// MediaSource is the resolved playback input for a track: the physical
// file plus the cue slice when the track is virtual.
type MediaSource struct {
	Path        string
	IsCue       bool
	CueStart    float64
	CueDuration float64 // Seconds; 0 = unknown
}

// Source returns the media source for the track.
func (t *Track) Source() *MediaSource {
	return &MediaSource{
		Path:        t.Path,
		IsCue:       t.IsCue,
		CueStart:    t.CueStart,
		CueDuration: t.CueDuration,
	}
}

// ParentID returns the ID of the directory containing the track,
// or "/" for top-level items.
func (t *Track) ParentID() string {
	idx := strings.LastIndex(t.ID, "/")
	if idx <= 0 {
		return "/"
	}
	return t.ID[:idx]
}

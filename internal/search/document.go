// Package search provides full-text track search using Bleve. Queries
// match across title, artist and album with fuzzy and prefix fallback
// for typo tolerance and autocomplete.
package search

import (
	"github.com/quaverapp/quaver-server/internal/domain"
)

// TrackDocument is the document shape indexed for each track.
type TrackDocument struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// NewTrackDocument builds a search document from a library track.
func NewTrackDocument(t *domain.Track) *TrackDocument {
	return &TrackDocument{
		ID:     t.ID,
		Title:  t.Title,
		Artist: t.Artist,
		Album:  t.Album,
		Suffix: t.Suffix,
	}
}

// ToMap converts the document to a map so indexed field names match the
// mapping exactly.
func (d *TrackDocument) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":     d.ID,
		"title":  d.Title,
		"artist": d.Artist,
		"album":  d.Album,
		"suffix": d.Suffix,
	}
}

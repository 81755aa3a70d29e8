package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackParentID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"/Artist/Album/01.flac", "/Artist/Album"},
		{"/Artist", "/"},
		{"/loose.flac", "/"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			track := &Track{ID: tt.id}
			assert.Equal(t, tt.want, track.ParentID())
		})
	}
}

func TestTrackSource(t *testing.T) {
	track := &Track{
		ID:          "/disc.flac#3",
		Path:        "/music/disc.flac",
		IsCue:       true,
		CueStart:    120.5,
		CueDuration: 200,
	}

	src := track.Source()
	assert.Equal(t, "/music/disc.flac", src.Path)
	assert.True(t, src.IsCue)
	assert.Equal(t, 120.5, src.CueStart)
	assert.Equal(t, 200.0, src.CueDuration)
}

package hls

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// PlaylistName is the playlist file the transcoder writes into each
	// work directory.
	PlaylistName = "playlist.m3u8"

	// SegmentPrefix is the literal prefix of every segment filename.
	SegmentPrefix = "segment_"

	headerMagic = "#EXTM3U"
	endMarker   = "#EXT-X-ENDLIST"
)

// parsePlaylist extracts the ordered segment references and the
// stream-end flag from playlist text.
func parsePlaylist(text string) (segments []string, ended bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == endMarker {
			ended = true
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ".ts") {
			segments = append(segments, line)
		}
	}
	return segments, ended
}

// playlistComplete reports whether the work directory holds a finished
// transcode: the playlist carries both the header magic and the
// stream-end marker, and every referenced segment exists with non-zero
// size. Completeness is evaluated on every call rather than persisted,
// so partial directories left by crashes are detected on next touch.
func playlistComplete(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, PlaylistName))
	if err != nil {
		return false
	}
	text := string(data)
	if !strings.Contains(text, headerMagic) {
		return false
	}
	segments, ended := parsePlaylist(text)
	if !ended || len(segments) == 0 {
		return false
	}
	for _, seg := range segments {
		info, err := os.Stat(filepath.Join(dir, filepath.Base(seg)))
		if err != nil || info.Size() == 0 {
			return false
		}
	}
	return true
}

// RewriteSegmentURLs rewrites bare segment references in playlist text
// into root-relative URLs the segment handler can resolve. Every
// occurrence of the segment prefix becomes
//
//	<basePath>?key=<escaped cacheKey + "/">segment_
//
// The rewrite happens in memory on every served response; the on-disk
// playlist is never modified, so the same cached transcode can be
// served under different base paths.
func RewriteSegmentURLs(text, basePath, cacheKey string) string {
	replacement := basePath + "?key=" + escapeRFC3986(cacheKey+"/") + SegmentPrefix
	return strings.ReplaceAll(text, SegmentPrefix, replacement)
}

// escapeRFC3986 percent-encodes everything except RFC 3986 unreserved
// characters. url.QueryEscape is not usable here: it emits "+" for
// space, which does not survive identifiers that themselves contain
// "+". Encoding strictly keeps "#", "?", "+" and spaces intact through
// the query parameter.
func escapeRFC3986(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}

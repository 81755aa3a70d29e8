package hls

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quaverapp/quaver-server/internal/config"
	"github.com/quaverapp/quaver-server/internal/domain"
	apperrors "github.com/quaverapp/quaver-server/internal/errors"
)

// segmentSeconds is the HLS segment target duration handed to the
// transcoder.
const segmentSeconds = 3

// Resolver maps opaque library identifiers to playable media sources.
// Implementations may be a search index, a SQL table, or an in-memory
// map; the streamer only needs this one method.
type Resolver interface {
	Resolve(ctx context.Context, itemID string) (*domain.MediaSource, error)
}

// Streamer is the facade over the HLS core: it resolves items through
// the library index, coordinates the cache, the job registry and the
// readiness probe, and rewrites playlists for serving.
type Streamer struct {
	cfg      config.StreamConfig
	cache    *Cache
	registry *Registry
	probe    *Probe
	library  Resolver
	logger   *slog.Logger
}

// NewStreamer creates a streamer. The transcoder binary is resolved at
// construction: an explicit path wins, otherwise ffmpeg is looked up on
// PATH. A missing binary is not fatal here; playlist requests then fail
// with a transcoder-unavailable error.
func NewStreamer(cfg config.StreamConfig, library Resolver, logger *slog.Logger) (*Streamer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bin := cfg.TranscoderPath
	if bin == "" {
		path, err := exec.LookPath("ffmpeg")
		if err != nil {
			logger.Warn("transcoder not found, streaming disabled until configured")
		}
		bin = path
	}
	if bin != "" {
		logger.Info("using transcoder", "path", bin)
	}

	if err := os.MkdirAll(cfg.CacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	return &Streamer{
		cfg:      cfg,
		cache:    NewCache(cfg.CacheMaxEntries, cfg.CacheMaxAge, logger),
		registry: NewRegistry(bin, cfg.MaxJobs, cfg.JobTimeout, logger),
		probe: &Probe{
			MinSegments: cfg.MinSegments,
			Timeout:     cfg.ReadyTimeout,
			Poll:        cfg.PollInterval,
			Fallback:    cfg.FallbackAfter,
		},
		library: library,
		logger:  logger,
	}, nil
}

// Cache exposes the segment cache, for the janitor and for tests.
func (s *Streamer) Cache() *Cache {
	return s.cache
}

// Registry exposes the job registry, for shutdown and for tests.
func (s *Streamer) Registry() *Registry {
	return s.registry
}

// GeneratePlaylist returns playlist text for the item+variant pair,
// spawning or reusing a transcode as needed. basePath is the
// root-relative URL prefix segment references are rewritten to.
func (s *Streamer) GeneratePlaylist(ctx context.Context, itemID string, v Variant, basePath string) (string, error) {
	key := CacheKey(itemID, v)
	dir := s.workDir(key)

	if s.cfg.CacheEnabled {
		if entry, ok := s.cache.Get(key); ok && entry.Complete {
			return s.readRewritten(dir, basePath, key)
		}
	}

	src, err := s.library.Resolve(ctx, itemID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(src.Path); err != nil {
		return "", apperrors.SourceMissingf("source file missing for %q", itemID)
	}

	if s.registry.bin == "" {
		return "", apperrors.ErrTranscoderUnavailable
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "create work directory")
	}

	job, started := s.registry.EnsureRunning(itemID, v, dir, buildTranscodeArgs(src, v, dir))
	if started {
		s.logger.Info("started transcode", "item", itemID, "variant", v.Key())
		s.watchJob(job, key, dir)
	}

	if err := s.probe.Wait(ctx, dir, job.Running); err != nil {
		switch {
		case ctx.Err() != nil:
			// This client went away. The job may have other waiters on
			// the same item+variant, so it keeps running and the cache
			// entry stays.
			return "", err
		case apperrors.Is(err, apperrors.ErrTranscoderNoOutput):
			s.cache.Remove(key)
			if startErr := job.StartErr(); startErr != nil {
				return "", apperrors.ErrTranscoderUnavailable.WithCause(startErr)
			}
			s.logger.Error("transcoder produced no output", "item", itemID, "stderr", job.StderrTail())
			return "", err
		default:
			// Readiness timeout: the transcoder is alive but has made no
			// usable progress, so give up on it entirely.
			job.Cancel()
			s.cache.Remove(key)
			return "", err
		}
	}

	text, err := s.readRewritten(dir, basePath, key)
	if err != nil {
		return "", err
	}

	if s.cfg.CacheEnabled {
		s.cache.Put(key, dir)
	}

	return text, nil
}

// watchJob attaches the post-termination continuation to a freshly
// spawned job: a clean exit refreshes the cache entry so future lookups
// see it complete, a failed exit is logged and leaves the entry
// incomplete so a later request re-transcodes.
func (s *Streamer) watchJob(job *Job, key, dir string) {
	go func() {
		<-job.Done()
		switch job.Status() {
		case StatusCompleted:
			if s.cfg.CacheEnabled {
				s.cache.Put(key, dir)
			}
			s.logger.Info("transcode completed", "item", job.ItemID, "variant", job.Variant.Key())
		case StatusFailed:
			s.logger.Error("transcode failed",
				"item", job.ItemID,
				"exit_code", job.ExitCode(),
				"stderr", job.StderrTail(),
			)
		case StatusTimedOut:
			s.logger.Error("transcode exceeded hard timeout", "item", job.ItemID)
		case StatusCancelled:
			s.logger.Debug("transcode cancelled", "item", job.ItemID)
		}
	}()
}

// ServeSegment maps a client-supplied key (the path under the cache
// root) to an absolute file path and MIME type. Any path that does not
// canonicalize to a descendant of the cache root is refused.
func (s *Streamer) ServeSegment(key string) (path, mime string, err error) {
	if key == "" {
		return "", "", apperrors.Validation("segment key is required")
	}

	root := filepath.Clean(s.cfg.CacheRoot)
	candidate := filepath.Join(root, filepath.FromSlash(key))

	if !underRoot(root, candidate) {
		return "", "", apperrors.PathEscape(fmt.Sprintf("segment key %q escapes cache root", key))
	}

	switch filepath.Ext(candidate) {
	case ".ts":
		mime = "video/MP2T"
	case ".m3u8":
		mime = "application/vnd.apple.mpegurl"
	default:
		return "", "", apperrors.Validationf("unsupported segment type %q", filepath.Ext(candidate))
	}

	// The lexical check above is not enough: a symlink planted under
	// the cache root could resolve anywhere. Canonicalize both ends and
	// re-check containment.
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", "", apperrors.Wrap(err, apperrors.CodeInternal, "resolve cache root")
	}
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", "", apperrors.SegmentNotFound(fmt.Sprintf("segment %q not found", key))
	}
	if !underRoot(resolvedRoot, resolved) {
		return "", "", apperrors.PathEscape(fmt.Sprintf("segment key %q escapes cache root", key))
	}

	if info, statErr := os.Stat(resolved); statErr != nil || info.IsDir() {
		return "", "", apperrors.SegmentNotFound(fmt.Sprintf("segment %q not found", key))
	}

	return candidate, mime, nil
}

// underRoot reports whether path sits at or below root, lexically.
func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Shutdown cancels all running jobs.
func (s *Streamer) Shutdown() {
	s.registry.CancelAll()
}

// workDir returns the on-disk directory for a cache key. Keys are
// path-like and nest under the cache root.
func (s *Streamer) workDir(key string) string {
	return filepath.Join(s.cfg.CacheRoot, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// readRewritten reads the on-disk playlist and rewrites segment
// references for the given base path.
func (s *Streamer) readRewritten(dir, basePath, key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, PlaylistName))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "read playlist")
	}
	return RewriteSegmentURLs(string(data), basePath, key), nil
}

// buildTranscodeArgs constructs the transcoder argv for one job:
// audio-only HLS with mpegts segments, pre-input seek and duration
// bound for cue tracks, explicit bitrate only when the variant asks
// for one.
func buildTranscodeArgs(src *domain.MediaSource, v Variant, dir string) []string {
	args := []string{"-v", "error", "-y"}

	// Seeking before -i is fast: the demuxer seeks instead of decoding
	// and discarding.
	if src.IsCue {
		args = append(args, "-ss", formatSeconds(src.CueStart))
	}
	args = append(args, "-i", src.Path)
	if src.IsCue && src.CueDuration > 0 {
		args = append(args, "-t", formatSeconds(src.CueDuration))
	}

	args = append(args, "-vn", "-c:a", "aac")
	if v.BitrateKbps > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", v.BitrateKbps))
	}

	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(dir, SegmentPrefix+"%03d.ts"),
		"-start_number", "0",
		filepath.Join(dir, PlaylistName),
	)
	return args
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

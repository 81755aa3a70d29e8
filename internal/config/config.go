// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Server  ServerConfig
	Library LibraryConfig
	Stream  StreamConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 4533)
	PathBase     string        // Path prefix when served behind a proxy (default: empty)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 60s, playlist generation can block)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// LibraryConfig holds music library configuration.
type LibraryConfig struct {
	// MusicPath is the root of the music collection. Can be empty;
	// the server then serves only what is already indexed.
	MusicPath string
	// IndexPath is the directory holding the badger index and the
	// search index (default: {workingDir}/index).
	IndexPath string
}

// StreamConfig holds HLS streaming configuration.
type StreamConfig struct {
	// CacheEnabled allows disabling the segment cache entirely; every
	// playlist request then re-spawns the transcoder (default: true).
	CacheEnabled bool
	// CacheMaxEntries caps the number of cached transcodes (default: 100).
	CacheMaxEntries int
	// CacheMaxAge is the per-entry TTL (default: 60m).
	CacheMaxAge time.Duration
	// CacheRoot is the directory holding per-key segment directories
	// (default: {workingDir}/hls_segments).
	CacheRoot string
	// WorkingDir is the parent for cache and index (default: process directory).
	WorkingDir string
	// TranscoderPath overrides auto-detection of ffmpeg. The
	// TRANSCODER_PATH environment variable wins over the flag.
	TranscoderPath string
	// MaxJobs bounds concurrent transcoder processes (default: 4).
	MaxJobs int
	// MinSegments is the number of segments required before a playlist
	// request is answered (default: 2).
	MinSegments int
	// ReadyTimeout bounds the wait for first transcoder output (default: 30s).
	ReadyTimeout time.Duration
	// PollInterval is the readiness poll period (default: 200ms).
	PollInterval time.Duration
	// FallbackAfter accepts a single-segment playlist after this delay (default: 2s).
	FallbackAfter time.Duration
	// JobTimeout is the hard cap on a single transcode (default: 10m).
	JobTimeout time.Duration
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// args are the command-line arguments without the program name.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("quaver", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	serverName := fs.String("server-name", "", "Name for the server")
	serverPort := fs.String("port", "", "Server port (default: 4533)")
	pathBase := fs.String("path-base", "", "Path prefix when served behind a reverse proxy")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 60s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	musicPath := fs.String("music-path", "", "Path to the music library")
	indexPath := fs.String("index-path", "", "Directory for the track and search indexes")
	workingDir := fs.String("working-dir", "", "Parent directory for cache and index")

	cacheEnabled := fs.String("stream-cache-enabled", "", "Enable the HLS segment cache (default: true)")
	cacheMaxEntries := fs.String("stream-cache-max-entries", "", "Max cached transcodes (default: 100)")
	cacheMaxAge := fs.String("stream-cache-max-age-minutes", "", "Cache entry TTL in minutes (default: 60)")
	cacheRoot := fs.String("stream-cache-root", "", "Directory for HLS segment directories")
	transcoderPath := fs.String("transcoder-path", "", "Path to ffmpeg binary (default: auto-detect)")
	maxJobs := fs.String("stream-max-jobs", "", "Max concurrent transcoder processes (default: 4)")
	minSegments := fs.String("stream-min-segments", "", "Segments required before first response (default: 2)")
	readyTimeout := fs.String("stream-ready-timeout-ms", "", "Readiness timeout in ms (default: 30000)")
	pollInterval := fs.String("stream-poll-ms", "", "Readiness poll period in ms (default: 200)")
	fallbackAfter := fs.String("stream-fallback-ms", "", "Single-segment fallback delay in ms (default: 2000)")
	jobTimeout := fs.String("stream-job-timeout-minutes", "", "Hard transcode timeout in minutes (default: 10)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Name:     getConfigValue(*serverName, "SERVER_NAME", "Quaver Server"),
			Port:     getConfigValue(*serverPort, "SERVER_PORT", "4533"),
			PathBase: getConfigValue(*pathBase, "PATH_BASE", ""),
		},
		Library: LibraryConfig{
			MusicPath: getConfigValue(*musicPath, "MUSIC_PATH", ""),
			IndexPath: getConfigValue(*indexPath, "INDEX_PATH", ""),
		},
		Stream: StreamConfig{
			CacheEnabled:    getBoolConfigValue(*cacheEnabled, "STREAM_CACHE_ENABLED", true),
			CacheMaxEntries: getIntConfigValue(*cacheMaxEntries, "STREAM_CACHE_MAX_ENTRIES", 100),
			CacheRoot:       getConfigValue(*cacheRoot, "STREAM_CACHE_ROOT", ""),
			WorkingDir:      getConfigValue(*workingDir, "WORKING_DIR", ""),
			MaxJobs:         getIntConfigValue(*maxJobs, "STREAM_MAX_JOBS", 4),
			MinSegments:     getIntConfigValue(*minSegments, "STREAM_MIN_SEGMENTS", 2),
		},
	}

	// TRANSCODER_PATH deliberately beats the flag so operators can swap
	// the binary without touching unit files.
	if envPath := os.Getenv("TRANSCODER_PATH"); envPath != "" {
		cfg.Stream.TranscoderPath = envPath
	} else {
		cfg.Stream.TranscoderPath = *transcoderPath
	}

	cfg.Stream.CacheMaxAge = time.Duration(getIntConfigValue(*cacheMaxAge, "STREAM_CACHE_MAX_AGE_MINUTES", 60)) * time.Minute
	cfg.Stream.ReadyTimeout = time.Duration(getIntConfigValue(*readyTimeout, "STREAM_READY_TIMEOUT_MS", 30000)) * time.Millisecond
	cfg.Stream.PollInterval = time.Duration(getIntConfigValue(*pollInterval, "STREAM_POLL_MS", 200)) * time.Millisecond
	cfg.Stream.FallbackAfter = time.Duration(getIntConfigValue(*fallbackAfter, "STREAM_FALLBACK_MS", 2000)) * time.Millisecond
	cfg.Stream.JobTimeout = time.Duration(getIntConfigValue(*jobTimeout, "STREAM_JOB_TIMEOUT_MINUTES", 10)) * time.Minute

	// Parse server timeouts.
	var err error
	if cfg.Server.ReadTimeout, err = parseTimeout(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseTimeout(*writeTimeout, "SERVER_WRITE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseTimeout(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Stream.WorkingDir == "" {
		return errors.New("working directory cannot be empty after expansion")
	}
	if c.Stream.CacheMaxEntries < 1 {
		return fmt.Errorf("stream cache max entries must be positive, got %d", c.Stream.CacheMaxEntries)
	}
	if c.Stream.MaxJobs < 1 {
		return fmt.Errorf("stream max jobs must be positive, got %d", c.Stream.MaxJobs)
	}
	if c.Stream.MinSegments < 1 {
		return fmt.Errorf("stream min segments must be positive, got %d", c.Stream.MinSegments)
	}

	// MusicPath can be empty - the server then serves the existing index only.

	return nil
}

// expandPaths resolves working dir, cache root, index and music paths.
func (c *Config) expandPaths() error {
	defaultWorkingDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	if c.Stream.WorkingDir, err = expandPath(c.Stream.WorkingDir, defaultWorkingDir); err != nil {
		return fmt.Errorf("invalid working dir: %w", err)
	}
	if c.Stream.CacheRoot, err = expandPath(c.Stream.CacheRoot, filepath.Join(c.Stream.WorkingDir, "hls_segments")); err != nil {
		return fmt.Errorf("invalid cache root: %w", err)
	}
	if c.Library.IndexPath, err = expandPath(c.Library.IndexPath, filepath.Join(c.Stream.WorkingDir, "index")); err != nil {
		return fmt.Errorf("invalid index path: %w", err)
	}
	if c.Library.MusicPath != "" {
		if c.Library.MusicPath, err = expandPath(c.Library.MusicPath, ""); err != nil {
			return fmt.Errorf("invalid music path: %w", err)
		}
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// parseTimeout parses a duration from flag, env var, or default.
func parseTimeout(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return d, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

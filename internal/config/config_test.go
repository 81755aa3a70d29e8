package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "4533", cfg.Server.Port)
	assert.Empty(t, cfg.Server.PathBase)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)

	assert.True(t, cfg.Stream.CacheEnabled)
	assert.Equal(t, 100, cfg.Stream.CacheMaxEntries)
	assert.Equal(t, time.Hour, cfg.Stream.CacheMaxAge)
	assert.Equal(t, 4, cfg.Stream.MaxJobs)
	assert.Equal(t, 2, cfg.Stream.MinSegments)
	assert.Equal(t, 30*time.Second, cfg.Stream.ReadyTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Stream.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Stream.FallbackAfter)
	assert.Equal(t, 10*time.Minute, cfg.Stream.JobTimeout)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, cfg.Stream.WorkingDir)
	assert.Equal(t, filepath.Join(wd, "hls_segments"), cfg.Stream.CacheRoot)
	assert.Equal(t, filepath.Join(wd, "index"), cfg.Library.IndexPath)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-env", "production",
		"-log-level", "warn",
		"-port", "8080",
		"-path-base", "/music",
		"-stream-max-jobs", "8",
		"-stream-cache-max-entries", "50",
		"-stream-cache-enabled", "false",
	})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/music", cfg.Server.PathBase)
	assert.Equal(t, 8, cfg.Stream.MaxJobs)
	assert.Equal(t, 50, cfg.Stream.CacheMaxEntries)
	assert.False(t, cfg.Stream.CacheEnabled)
}

func TestLoadEnvVars(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STREAM_MIN_SEGMENTS", "3")
	t.Setenv("STREAM_READY_TIMEOUT_MS", "5000")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Stream.MinSegments)
	assert.Equal(t, 5*time.Second, cfg.Stream.ReadyTimeout)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load([]string{"-port", "7070"})
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
}

// TRANSCODER_PATH is the one deliberate inversion: the environment
// variable wins over the flag so the binary can be swapped without
// editing unit files.
func TestLoadTranscoderPathEnvWins(t *testing.T) {
	t.Setenv("TRANSCODER_PATH", "/opt/ffmpeg/bin/ffmpeg")

	cfg, err := Load([]string{"-transcoder-path", "/usr/bin/ffmpeg"})
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Stream.TranscoderPath)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# comment\n\nSERVER_NAME=\"From File\"\nSTREAM_MAX_JOBS=6\n",
	), 0o644))

	cfg, err := Load([]string{"-env-file", envFile})
	require.NoError(t, err)

	assert.Equal(t, "From File", cfg.Server.Name)
	assert.Equal(t, 6, cfg.Stream.MaxJobs)

	t.Cleanup(func() {
		os.Unsetenv("SERVER_NAME")
		os.Unsetenv("STREAM_MAX_JOBS")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid environment",
			mutate:  func(c *Config) { c.App.Environment = "prod" },
			wantErr: "invalid environment",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logger.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "zero max jobs",
			mutate:  func(c *Config) { c.Stream.MaxJobs = 0 },
			wantErr: "max jobs",
		},
		{
			name:    "zero min segments",
			mutate:  func(c *Config) { c.Stream.MinSegments = 0 },
			wantErr: "min segments",
		},
		{
			name:    "zero cache entries",
			mutate:  func(c *Config) { c.Stream.CacheMaxEntries = 0 },
			wantErr: "cache max entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(nil)
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/music", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "music"), got)

	got, err = expandPath("", "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", got)

	got, err = expandPath("/a/b/../c", "")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", got)
}

package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/quaverapp/quaver-server/internal/config"
	"github.com/quaverapp/quaver-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Quaver Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"music_path", cfg.Library.MusicPath,
		"cache_root", cfg.Stream.CacheRoot,
	)

	return log, nil
}

package providers

import (
	"github.com/samber/do/v2"

	"github.com/quaverapp/quaver-server/internal/config"
	"github.com/quaverapp/quaver-server/internal/hls"
	"github.com/quaverapp/quaver-server/internal/logger"
)

// StreamerHandle wraps the HLS streamer and its cache janitor with
// shutdown capability.
type StreamerHandle struct {
	*hls.Streamer
	janitor *hls.Janitor
}

// Shutdown implements do.Shutdownable.
func (h *StreamerHandle) Shutdown() error {
	h.janitor.Stop()
	h.Streamer.Shutdown()
	return nil
}

// ProvideStreamer provides the HLS streaming facade with its janitor
// started.
func ProvideStreamer(i do.Injector) (*StreamerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	streamer, err := hls.NewStreamer(cfg.Stream, storeHandle.Store, log.Logger)
	if err != nil {
		return nil, err
	}

	janitor := hls.NewJanitor(streamer.Cache(), log.Logger)
	janitor.Start()

	log.Info("HLS streamer started",
		"cache_root", cfg.Stream.CacheRoot,
		"max_jobs", cfg.Stream.MaxJobs,
	)

	return &StreamerHandle{Streamer: streamer, janitor: janitor}, nil
}

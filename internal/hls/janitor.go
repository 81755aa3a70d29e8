package hls

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	janitorInterval = 60 * time.Second
	janitorBackoff  = 10 * time.Minute
)

// Janitor periodically sweeps expired cache entries. It owns its timer,
// checks the shutdown signal each iteration, and is joined on process
// teardown. A failed sweep backs the loop off to ten minutes.
type Janitor struct {
	cache    *Cache
	interval time.Duration
	backoff  time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a janitor for the given cache.
func NewJanitor(cache *Cache, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Janitor{
		cache:    cache,
		interval: janitorInterval,
		backoff:  janitorBackoff,
		logger:   logger,
	}
}

// Start launches the sweep loop in the background.
func (j *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(ctx)
}

// Stop signals shutdown and waits for the loop to exit.
func (j *Janitor) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	timer := time.NewTimer(j.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := j.interval
		if err := j.sweep(); err != nil {
			j.logger.Error("cache sweep failed, backing off", "error", err, "backoff", j.backoff)
			next = j.backoff
		}
		timer.Reset(next)
	}
}

// sweep runs one TTL pass. Panics are converted to errors so a broken
// sweep can never kill the loop.
func (j *Janitor) sweep() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()

	evicted, err := j.cache.SweepExpired()
	if err != nil {
		return err
	}
	if evicted > 0 {
		j.logger.Info("swept expired cache entries", "evicted", evicted)
	}
	return nil
}

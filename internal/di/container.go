// Package di provides dependency injection configuration for the
// Quaver server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/quaverapp/quaver-server/internal/config"
	"github.com/quaverapp/quaver-server/internal/di/providers"
	"github.com/quaverapp/quaver-server/internal/library"
	"github.com/quaverapp/quaver-server/internal/logger"
)

// NewContainer creates and configures the DI container with all
// providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Library layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideScanner)
	do.Provide(injector, providers.ProvideWatcher)

	// Streaming layer
	do.Provide(injector, providers.ProvideStreamer)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and triggers lazy initialization.
func Bootstrap(injector *do.RootScope) error {
	invocations := []func() error{
		func() error { _, err := do.Invoke[*config.Config](injector); return err },
		func() error { _, err := do.Invoke[*logger.Logger](injector); return err },
		func() error { _, err := do.Invoke[*providers.StoreHandle](injector); return err },
		func() error { _, err := do.Invoke[*providers.SearchIndexHandle](injector); return err },
		func() error { _, err := do.Invoke[*library.Scanner](injector); return err },
		func() error { _, err := do.Invoke[*providers.WatcherHandle](injector); return err },
		func() error { _, err := do.Invoke[*providers.StreamerHandle](injector); return err },
		func() error { _, err := do.Invoke[*providers.HTTPServerHandle](injector); return err },
	}
	for _, invoke := range invocations {
		if err := invoke(); err != nil {
			return err
		}
	}
	return nil
}

//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/hexforge/hexforge/internal/config"
	"github.com/hexforge/hexforge/internal/core/bridge"
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/core/registry"
	"github.com/hexforge/hexforge/internal/core/storage"
	"github.com/hexforge/hexforge/internal/provider"
)

func provideLogger(cfg config.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

func provideStore(cfg config.Config) (*storage.OSStore, error) {
	return storage.NewOSStore(cfg.DataDir)
}

func provideProvider(cfg config.Config, store *storage.OSStore, reg *registry.Registry, br *bridge.Bridge, logger *log.Logger) *provider.Provider {
	return provider.New(store, reg, br, cfg.BackupDir, logger)
}

// BuildProvider assembles the host object graph from a loaded config.
func BuildProvider(cfg config.Config) (*provider.Provider, error) {
	wire.Build(
		provideLogger,
		provideStore,
		bridge.New,
		registry.New,
		provideProvider,
		wire.Bind(new(log.Log), new(*log.Logger)),
	)
	return nil, nil
}

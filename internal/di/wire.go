//go:build wireinject
// +build wireinject

package di

import (
	"SignalForge/pkg/config"
	"SignalForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp builds the API application from configuration.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideRedisClient,
		ProvidePgxPool,
		ProvideResultStore,
		ProvideQueue,
		ProvideMetrics,
		ProvideHandler,
		ProvideApp,
	)
	return nil, nil
}

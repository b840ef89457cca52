//go:build wireinject
// +build wireinject

package di

import (
	"PanelSync/pkg/config"
	"PanelSync/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideDocStore,
		ProvideClickHouseClient,

		// Repositories
		ProvidePanelStore,
		ProvideInstrumentCatalog,
		ProvideInstrumentSearch,
		ProvideEventStore,
		ProvideHub,
		ProvideEventRelay,

		// Use cases
		ProvideDispatcher,
		ProvideKafkaConsumer,

		// Transports
		ProvideCanvasHandler,
		ProvidePointerStream,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PanelSync/internal/repository"
	"PanelSync/internal/usecase"
	pkgch "PanelSync/pkg/clickhouse"
	"PanelSync/pkg/config"
	"PanelSync/pkg/docstore"
	xhttp "PanelSync/pkg/http"
	pkgkafka "PanelSync/pkg/kafka"
	applogger "PanelSync/pkg/logger"
)

// Components are the long-lived parts the App starts and stops. Consumer,
// Producer and ClickHouse are nil when their backend is disabled.
type Components struct {
	HTTP       *xhttp.Server
	Dispatcher *usecase.Dispatcher
	Consumer   *pkgkafka.Consumer
	Events     *repository.EventRelay
	Panels     *repository.PanelStore
	Store      docstore.Store
	Producer   *pkgkafka.Producer
	ClickHouse *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{cfg: cfg, log: log, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.c.Dispatcher.Start()

	if a.c.Consumer != nil {
		go func() {
			if err := a.c.Consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.Strings("topics", a.c.Consumer.Topics()))
	}

	if err := a.c.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops inbound traffic first, then drains outbound writers.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		keep(err)
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			keep(err)
		}
	}

	a.c.Dispatcher.Stop()

	// closes the websocket hub and the kafka sink
	if err := a.c.Events.Close(); err != nil {
		a.log.Warn("event relay close error", applogger.Error(err))
	}
	if err := a.c.Panels.Close(); err != nil {
		a.log.Warn("panel store close error", applogger.Error(err))
		keep(err)
	}
	if err := a.c.Store.Close(); err != nil {
		a.log.Warn("document store close error", applogger.Error(err))
	}

	// flush collected errors while the producer is still open
	a.log.RemoveCollector()

	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return first
}

package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"PanelSync/internal/domain/models"
	"PanelSync/internal/domain/repository"
	"PanelSync/internal/handler/api"
	"PanelSync/internal/handler/ws"
	internalrepo "PanelSync/internal/repository"
	"PanelSync/internal/service/search"
	"PanelSync/internal/usecase"
	pkgch "PanelSync/pkg/clickhouse"
	"PanelSync/pkg/config"
	"PanelSync/pkg/docstore"
	xhttp "PanelSync/pkg/http"
	pkgkafka "PanelSync/pkg/kafka"
	applogger "PanelSync/pkg/logger"
	"PanelSync/pkg/metrics"
	"PanelSync/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. Errors are also shipped to
// the logs topic when the collector is enabled and Kafka is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "panelsync",
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideDocStore opens the panel document backend.
func ProvideDocStore(cfg *config.Config) (docstore.Store, error) {
	if cfg.Persistence.Backend == "memory" {
		return docstore.NewMemoryStore(), nil
	}
	store, err := docstore.NewRedisStore(
		docstore.WithRedisHost(cfg.Redis.Host),
		docstore.WithRedisPort(cfg.Redis.Port),
		docstore.WithRedisPassword(cfg.Redis.Password),
		docstore.WithRedisDB(cfg.Redis.DB),
		docstore.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/4, 4*time.Second),
		docstore.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}
	return store, nil
}

// ProvidePanelStore creates the asynchronous panel writer.
func ProvidePanelStore(store docstore.Store, l *applogger.Logger, m repository.Metrics, cfg *config.Config) *internalrepo.PanelStore {
	return internalrepo.NewPanelStore(store, l, m,
		internalrepo.WithQueueSize(cfg.Persistence.QueueSize),
		internalrepo.WithWriteTimeout(cfg.Persistence.WriteTimeout),
	)
}

// ProvideInstrumentCatalog creates the catalog and loads the configured seed.
func ProvideInstrumentCatalog(store docstore.Store, cfg *config.Config) (*internalrepo.InstrumentCatalog, error) {
	catalog := internalrepo.NewInstrumentCatalog(store, cfg.Instruments.CacheTTL, cfg.Instruments.CacheSize)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range cfg.Instruments.Seed {
		inst := models.Instrument{
			ID:       s.ID,
			Symbol:   s.Symbol,
			FullName: s.FullName,
			Type:     s.Type,
			ISIN:     s.ISIN,
			Exchange: s.Exchange,
			Currency: s.Currency,
		}
		if err := catalog.Put(ctx, inst); err != nil {
			return nil, fmt.Errorf("seed instrument %s: %w", s.ID, err)
		}
	}
	return catalog, nil
}

// ProvideInstrumentSearch creates the search client, or nil when no search
// service is configured.
func ProvideInstrumentSearch(cfg *config.Config, catalog *internalrepo.InstrumentCatalog, l *applogger.Logger) repository.InstrumentSearch {
	if cfg.Search.BaseURL == "" {
		return nil
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return search.NewClient(cfg.Search.BaseURL,
		xhttp.NewClient(xhttp.WithTimeout(cfg.Search.Timeout), xhttp.WithTransport(transport)),
		search.WithCacheTTL(cfg.Search.CacheTTL),
		search.WithRecorder(catalog),
		search.WithLogger(l),
	)
}

// ProvideClickHouseClient creates a ClickHouse client with the event archive
// schema in place, or nil when the archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.EventSchema(cfg.ClickHouse.Database, eventTable(cfg))); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func eventTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideEventStore creates the event archive, or nil without ClickHouse.
func ProvideEventStore(ch *pkgch.Client, cfg *config.Config) repository.EventStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseEventStore(ch.DB(), eventTable(cfg))
}

// ProvideHub creates the websocket event hub.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideEventRelay fans canvas events out to websocket subscribers and,
// when Kafka is enabled, to the events topic.
func ProvideEventRelay(cfg *config.Config, hub *ws.Hub, producer *pkgkafka.Producer, l *applogger.Logger, m repository.Metrics) *internalrepo.EventRelay {
	sinks := []repository.EventPublisher{hub}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Events))
	}
	return internalrepo.NewEventRelay(cfg.Persistence.QueueSize, l, m, sinks...)
}

// ProvideDispatcher creates the canvas dispatcher.
func ProvideDispatcher(
	cfg *config.Config,
	store *internalrepo.PanelStore,
	catalog *internalrepo.InstrumentCatalog,
	relay *internalrepo.EventRelay,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Dispatcher {
	opts := usecase.CanvasOptions{
		SnapDistance:     cfg.Canvas.SnapDistance,
		SnapMargin:       cfg.Canvas.SnapMargin,
		FreezeSiblings:   cfg.Canvas.FreezeSiblings,
		DefaultMinWidth:  cfg.Canvas.DefaultMinWidth,
		DefaultMinHeight: cfg.Canvas.DefaultMinHeight,
	}
	deps := usecase.Deps{
		Gateway: store,
		Events:  relay,
		Metrics: m,
		Logger:  l,
	}
	return usecase.NewDispatcher(opts, deps, store, catalog, cfg.Canvas.DispatcherQueue)
}

// ProvideKafkaConsumer creates a consumer for external selections and, with
// the archive enabled, for canvas events. It is nil when Kafka is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	l *applogger.Logger,
	d *usecase.Dispatcher,
	events repository.EventStore,
	m repository.Metrics,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook{},
		pkgkafka.MaxPayloadHook{Limit: cfg.Kafka.Consumer.MaxPayload},
		pkgkafka.LoggingHook{Log: l, Slow: cfg.Kafka.Consumer.SlowHandler},
	))

	consumer.RegisterHandler(usecase.NewKafkaSelectionHandler(cfg.Kafka.Topics.Selections, d, m, l))
	if events != nil {
		consumer.RegisterHandler(usecase.NewKafkaEventsHandler(cfg.Kafka.Topics.Events, events, m))
	}
	return consumer, nil
}

// ProvideCanvasHandler creates the REST handler.
func ProvideCanvasHandler(l *applogger.Logger, d *usecase.Dispatcher, s repository.InstrumentSearch, events repository.EventStore) *api.CanvasEchoHandler {
	return api.NewCanvasEchoHandler(l, d, s, events)
}

// ProvidePointerStream creates the websocket gesture handler.
func ProvidePointerStream(cfg *config.Config, d *usecase.Dispatcher, hub *ws.Hub, l *applogger.Logger) *ws.PointerStream {
	return ws.NewPointerStream(ws.Config{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		PingInterval:    cfg.WebSocket.PingInterval,
		FrameBurst:      cfg.WebSocket.FrameBurst,
		FrameRate:       cfg.WebSocket.FrameRate,
	}, d, hub, l)
}

// ProvideHTTPServer creates the echo server with both transports mounted.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, rest *api.CanvasEchoHandler, stream *ws.PointerStream) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{rest, stream},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	d *usecase.Dispatcher,
	consumer *pkgkafka.Consumer,
	relay *internalrepo.EventRelay,
	panels *internalrepo.PanelStore,
	store docstore.Store,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, l, server.Components{
		HTTP:       httpServer,
		Dispatcher: d,
		Consumer:   consumer,
		Events:     relay,
		Panels:     panels,
		Store:      store,
		Producer:   producer,
		ClickHouse: ch,
	})
}

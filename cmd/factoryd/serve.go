package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nerrad567/factoryd/migrations"

	"github.com/nerrad567/factoryd/internal/api"
	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/bridge"
	"github.com/nerrad567/factoryd/internal/detailcache"
	"github.com/nerrad567/factoryd/internal/engine"
	"github.com/nerrad567/factoryd/internal/factory"
	"github.com/nerrad567/factoryd/internal/infrastructure/config"
	"github.com/nerrad567/factoryd/internal/infrastructure/database"
	"github.com/nerrad567/factoryd/internal/infrastructure/influxdb"
	"github.com/nerrad567/factoryd/internal/infrastructure/logging"
	"github.com/nerrad567/factoryd/internal/infrastructure/metrics"
	"github.com/nerrad567/factoryd/internal/infrastructure/mqtt"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/manual"
	"github.com/nerrad567/factoryd/internal/program"
)

// newServeCommand creates the serve command.
func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the factory engine and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.configPath)
		},
	}
}

// run is the serve logic, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Service config file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting factoryd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// The document is parsed first so a bad file fails before any
	// connection is made, and so the API port is known.
	doc, err := blueprint.Load(cfg.Factory.Document)
	if err != nil {
		return fmt.Errorf("loading factory document: %w", err)
	}
	log.Info("factory document loaded",
		"path", cfg.Factory.Document,
		"storages", len(doc.Storages),
		"processes", len(doc.Processes),
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeWith(log, "database", db)
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	transport, clients, closeTransport, err := startTransport(cfg, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	remote := bridge.NewRemote(transport, cfg.GetRequestTimeout())
	remote.SetLogger(log.Component("bridge"))

	details := detailcache.New(detailcache.NewSQLiteRepository(db.DB), remote)
	details.SetLogger(log.Component("detailcache"))
	if err := details.Load(ctx); err != nil {
		return fmt.Errorf("loading item details: %w", err)
	}
	log.Info("item detail cache loaded", "items", details.Len())

	var workers sync.WaitGroup
	defer workers.Wait()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	sink := logsink.New(logsink.Config{History: cfg.Factory.LogHistory})
	sink.SetLogger(log.Component("factory-log"))
	sink.SetPrinter(remote)
	goWorker(&workers, func() { sink.Run(runCtx) })

	m := metrics.New()
	queue := manual.NewQueue(cfg.Factory.ManualQueueSize)
	deliveries := m.WrapRecorder(manual.NewSQLiteRecorder(db.DB))
	programs := program.NewRegistry()

	factoryLog := log.Component("factory")
	build := func(ctx context.Context, doc *blueprint.Document) (*factory.Factory, error) {
		return factory.Build(ctx, doc, factory.Deps{
			Remote:       remote,
			Details:      details,
			Programs:     programs,
			Manual:       queue,
			Deliveries:   deliveries,
			Sink:         sink,
			Logger:       factoryLog,
			Probe:        cfg.Factory.Probe,
			ProbeTimeout: cfg.GetProbeTimeout(),
		})
	}

	// The holder starts empty: websocket clients can only connect once the
	// API listens, and the probe needs them.
	holder := engine.NewHolder(nil)
	holder.SetLogger(log.Component("engine"))
	defer closeWith(log, "factory", holder)

	scheduler := engine.NewScheduler(holder)
	scheduler.SetLogger(log.Component("scheduler"))
	scheduler.SetSink(sink)
	scheduler.AddObserver(m)

	watcher := engine.NewWatcher(cfg.Factory.Document, holder, build)
	watcher.SetLogger(log.Component("watcher"))
	watcher.SetDebounce(cfg.GetReloadDebounce())
	watcher.OnReload(m.ObserveReload)
	watcher.OnReload(func(err error) {
		if err != nil {
			sink.Logf(logsink.SeverityError, "reload", "document rejected: %v", err)
			return
		}
		sink.Log(logsink.SeveritySuccess, "reload", "factory document reloaded")
	})

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer closeWith(log, "InfluxDB", influx)
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		scheduler.AddObserver(influx)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	port := cfg.API.Port
	if port == 0 {
		port = doc.ServerPort
	}
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		Port:       port,
		Logger:     log.Component("api"),
		Holder:     holder,
		Scheduler:  scheduler,
		Reloader:   watcher,
		Manual:     queue,
		Deliveries: deliveries,
		Sink:       sink,
		Clients:    clients,
		Metrics:    m.Handler(),
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	scheduler.AddObserver(server.Hub())
	if err := server.Start(runCtx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer closeWith(log, "API server", server)

	f, err := build(ctx, doc)
	if err != nil {
		return fmt.Errorf("building factory: %w", err)
	}
	if err := holder.Swap(f); err != nil {
		return fmt.Errorf("installing factory: %w", err)
	}
	log.Info("factory built",
		"storages", len(f.Storages()),
		"processes", len(f.Processes()),
		"min_cycle_time", f.MinCycleTime(),
	)
	sink.Log(logsink.SeverityNotice, "factoryd", "factory started")

	goWorker(&workers, func() {
		if err := watcher.Run(runCtx); err != nil {
			log.Error("document watcher stopped", "error", err)
		}
	})
	goWorker(&workers, func() {
		if err := scheduler.Run(runCtx); err != nil && !errors.Is(err, engine.ErrNoFactory) {
			log.Error("scheduler stopped", "error", err)
		}
	})

	if err := healthCheck(ctx, db, server); err != nil {
		stop()
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	stop()
	return nil
}

// startTransport connects the configured client transport. clients is nil
// for MQTT, where remote clients talk to the broker instead of the API.
func startTransport(cfg *config.Config, log *logging.Logger) (bridge.Transport, api.ClientEndpoint, func(), error) {
	switch cfg.Factory.Transport {
	case config.TransportMQTT:
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log.Component("mqtt"))
		client.SetOnConnect(func() { log.Info("MQTT connected") })
		client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		t, err := bridge.NewMQTTTransport(client, byte(cfg.MQTT.QoS))
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		t.SetLogger(log.Component("bridge"))
		log.Info("MQTT transport ready",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		return t, nil, func() {
			closeWith(log, "MQTT transport", t)
			closeWith(log, "MQTT", client)
		}, nil

	default:
		ws := bridge.NewWSServer(cfg.Security.ClientSecret)
		ws.SetLogger(log.Component("bridge"))
		log.Info("websocket transport ready", "path", "/ws/client")
		return ws, ws, func() { closeWith(log, "websocket transport", ws) }, nil
	}
}

// healthCheck verifies all infrastructure is healthy after startup.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func goWorker(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

func closeWith(log *logging.Logger, name string, c io.Closer) {
	log.Info("closing " + name)
	if err := c.Close(); err != nil {
		log.Error("error closing "+name, "error", err)
	}
}

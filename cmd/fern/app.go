package main

import (
	"context"
	"sync/atomic"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/content"
	"github.com/Ramsey-B/fern/pkg/checker"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/extractor"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/server"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// app owns the connections and the optional status server for one command
type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup

	source      database.DB
	destination database.DB
	server      *server.Server
	pipeline    atomic.Pointer[pipeline.Pipeline]

	closers []func(context.Context) error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, flush, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	a.closers = append(a.closers, func(context.Context) error {
		flush()
		return nil
	})

	shutdownTracing, err := tracing.Setup(cmd.Context(), cfg.AppName, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
	})
	if err != nil {
		flush()
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	a.register()
	return a, nil
}

func (a *app) register() {
	a.startup.AddDependency(&startup.Dependency{
		Name: "source",
		StartFn: func(ctx context.Context) error {
			db, err := database.OpenSource(ctx, a.cfg.SQLitePath, a.logger)
			if err != nil {
				return err
			}
			a.source = db
			return nil
		},
		StopFn: func(context.Context) error {
			return a.source.Close()
		},
	})

	a.startup.AddDependency(&startup.Dependency{
		Name: "destination",
		StartFn: func(ctx context.Context) error {
			a.logger.WithContext(ctx).WithField("dsn", a.cfg.RedactedPostgresDSN()).Debug("Connecting to destination database")
			db, err := database.OpenDestination(ctx, a.cfg.PostgresDSN(), database.PoolConfig{
				MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
			}, a.logger)
			if err != nil {
				return err
			}
			a.destination = db
			return nil
		},
		StopFn: func(context.Context) error {
			return a.destination.Close()
		},
	})

	if a.cfg.MetricsPort == 0 {
		return
	}

	a.startup.AddDependency(&startup.Dependency{
		Name:     "server",
		Requires: []string{"source", "destination"},
		StartFn: func(ctx context.Context) error {
			a.server = server.New(a.cfg.MetricsPort, a.logger, a, map[string]server.ReadinessCheck{
				"source":      a.source.PingContext,
				"destination": a.destination.PingContext,
			})
			return a.server.Start(ctx)
		},
		StopFn: func(ctx context.Context) error {
			return a.server.Stop(ctx)
		},
	})
}

func (a *app) start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

// close stops dependencies and flushes telemetry. It uses a fresh context so a cancelled
// run still shuts down cleanly.
func (a *app) close() {
	ctx := context.Background()
	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("Shutdown finished with errors")
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i](ctx)
	}
}

// LastStats serves the report endpoint of the status server
func (a *app) LastStats() *pipeline.Stats {
	p := a.pipeline.Load()
	if p == nil {
		return nil
	}
	return p.LastStats()
}

func (a *app) newPipeline() (*pipeline.Pipeline, error) {
	tables, err := a.cfg.SelectedTables()
	if err != nil {
		return nil, err
	}

	source, err := extractor.New(a.source, a.cfg.ChunkSize, a.logger)
	if err != nil {
		return nil, err
	}
	source = source.WithTables(tables...)

	writer := content.NewRepository(a.destination, a.logger, content.Options{
		Schema: a.cfg.DatabaseSchema,
	})

	p := pipeline.New(source, writer, a.logger, pipeline.Config{
		Workers:   a.cfg.Workers,
		WriteMode: a.cfg.WriteMode,
	})
	a.pipeline.Store(p)
	return p, nil
}

func (a *app) verify(ctx context.Context) (*checker.Report, error) {
	tables, err := a.cfg.SelectedTables()
	if err != nil {
		return nil, err
	}

	c, err := checker.New(a.source, a.destination, a.logger, checker.Config{
		ChunkSize: a.cfg.ChunkSize,
		Schema:    a.cfg.DatabaseSchema,
		Tables:    tables,
	})
	if err != nil {
		return nil, err
	}

	report, err := c.Check(ctx)
	if a.server != nil {
		a.server.SetVerification(report, err)
	}
	return report, err
}

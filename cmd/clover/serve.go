package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/internal/repositories/record"
	"github.com/Ramsey-B/clover/internal/repositories/scansession"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/records"
	"github.com/Ramsey-B/clover/pkg/routes/scans"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dedup API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// services holds everything startup connects
type services struct {
	db       database.DB
	redis    *redis.Client
	producer *kafka.Producer
	graph    *graph.Client
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Endpoint:    cfg.OtelExporterEndpoint,
		Protocol:    cfg.OtelExporterProtocol,
		Insecure:    cfg.OtelExporterInsecure,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	svc := &services{}
	deps := a.dependencies(svc)
	if err := deps.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := deps.Stop(stopCtx); err != nil {
			log.WithError(err).Error("Failed to stop dependencies")
		}
	}()

	recordRepo := record.NewRepository(svc.db, log)
	opts := []processor.Option{
		processor.WithSessions(scansession.NewRepository(svc.redis, cfg.ScanSessionTTL, log)),
	}
	if svc.producer != nil {
		opts = append(opts, processor.WithEvents(events.NewEmitter(svc.producer, a.rules.HistoryField, log)))
	}
	var lineage records.LineageReader
	if svc.graph != nil {
		service := graph.NewLineageService(svc.graph, log)
		opts = append(opts, processor.WithLineage(service))
		lineage = service
	}
	proc := processor.NewProcessor(log, recordRepo, a.rules, opts...)

	checker := health.NewChecker(cfg.Version)
	checker.AddCheck("database", svc.db.PingContext)
	checker.AddCheck("redis", svc.redis.Ping)
	if svc.graph != nil {
		checker.AddCheck("graph", svc.graph.VerifyConnectivity)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(log)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(log))

	checker.RegisterRoutes(e)
	api := e.Group("/api/v1")
	scans.NewHandler(proc, log).Register(api)
	records.NewHandler(proc, recordRepo, lineage, log).Register(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting %s on %s", cfg.AppName, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (a *app) dependencies(svc *services) *startup.Startup {
	cfg := a.cfg
	log := a.logger
	deps := startup.NewStartup(log, cfg.StartupMaxAttempts)

	deps.AddDependency(startup.Dependency{
		Name: "postgres",
		OnStart: func(ctx context.Context) error {
			db, err := database.Connect(ctx, a.databaseConfig(), log)
			if err != nil {
				return err
			}
			svc.db = db
			return nil
		},
		OnStop: func(context.Context) error { return svc.db.Close() },
	})
	deps.AddDependency(startup.Dependency{
		Name:     "migrations",
		Requires: []string{"postgres"},
		OnStart: func(context.Context) error {
			return database.NewMigrationService(log, a.migrationConfig()).MigratePostgres(svc.db, cfg.DatabaseName)
		},
	})
	deps.AddDependency(startup.Dependency{
		Name: "redis",
		OnStart: func(ctx context.Context) error {
			client, err := redis.NewClient(ctx, redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, log)
			if err != nil {
				return err
			}
			svc.redis = client
			return nil
		},
		OnStop: func(context.Context) error { return svc.redis.Close() },
	})

	if cfg.KafkaEnabled {
		deps.AddDependency(startup.Dependency{
			Name: "kafka",
			OnStart: func(context.Context) error {
				svc.producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, log)
				return nil
			},
			OnStop: func(context.Context) error { return svc.producer.Close() },
		})
	}

	if cfg.GraphEnabled {
		deps.AddDependency(startup.Dependency{
			Name: "graph",
			OnStart: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
					Database: cfg.GraphDBName,
				}, log)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				svc.graph = client
				return nil
			},
			OnStop: func(ctx context.Context) error { return svc.graph.Close(ctx) },
		})
	}

	return deps
}

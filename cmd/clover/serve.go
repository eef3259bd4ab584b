package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/container"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/claims"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/reference"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// serviceUnit adapts closures to the startup dependency interface.
type serviceUnit struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (u *serviceUnit) GetName() string     { return u.name }
func (u *serviceUnit) DependsOn() []string { return u.dependsOn }

func (u *serviceUnit) Start(ctx context.Context) error {
	if u.start == nil {
		return nil
	}
	return u.start(ctx)
}

func (u *serviceUnit) Stop(ctx context.Context) error {
	if u.stop == nil {
		return nil
	}
	return u.stop(ctx)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the matching API, Kafka consumer, and reference index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.AppName,
		Version:     cfg.Version,
		Environment: cfg.Environment,
		SampleRatio: cfg.TracingSampleRatio,
		Exporter: exporters.OTLPConfig{
			Endpoint: cfg.TracingEndpoint,
			Protocol: cfg.TracingProtocol,
			Insecure: cfg.TracingInsecure,
		},
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	var (
		pool        *sqlx.DB
		db          database.DB
		redisClient *redis.Client
		deps        *container.Container
		consumer    *kafka.Consumer
		checker     *health.Checker
		server      *echo.Echo
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&serviceUnit{
		name: "database",
		start: func(ctx context.Context) error {
			conn, err := database.Connect(ctx, databaseConfig(cfg), logger)
			if err != nil {
				return err
			}

			driver, err := postgres.WithInstance(conn.DB, &postgres.Config{})
			if err != nil {
				conn.Close()
				return fmt.Errorf("creating migration driver: %w", err)
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
				conn.Close()
				return err
			}

			pool = conn
			db = database.NewDatabaseInstance(conn, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if pool == nil {
				return nil
			}
			return pool.Close()
		},
	})

	boot.AddDependency(&serviceUnit{
		name: "redis",
		start: func(ctx context.Context) error {
			client, err := redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		stop: func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	boot.AddDependency(&serviceUnit{
		name:      "container",
		dependsOn: []string{"database", "redis"},
		start: func(ctx context.Context) error {
			deps = container.Build(cfg, logger, db, redisClient)
			return deps.RegisterDI()
		},
	})

	boot.AddDependency(&serviceUnit{
		name:      "index",
		dependsOn: []string{"container"},
		start: func(ctx context.Context) error {
			_, err := deps.Manager.Rebuild(ctx)
			return err
		},
	})

	if cfg.KafkaConsumerEnabled {
		boot.AddDependency(&serviceUnit{
			name:      "kafka-consumer",
			dependsOn: []string{"index"},
			start: func(ctx context.Context) error {
				consumer = kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:       cfg.KafkaBrokers,
					Topic:         cfg.KafkaClaimsTopic,
					ConsumerGroup: cfg.KafkaConsumerGroup,
				}, logger, deps.Processor.ProcessMessage)
				return consumer.Start(ctx)
			},
			stop: func(ctx context.Context) error {
				if consumer == nil {
					return nil
				}
				return consumer.Stop()
			},
		})
	}

	boot.AddDependency(&serviceUnit{
		name:      "http-server",
		dependsOn: []string{"index"},
		start: func(ctx context.Context) error {
			server, checker = buildServer(cfg, logger, deps, consumer)

			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if err := server.StartServer(httpServer(cfg, addr)); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.WithError(err).Error("HTTP server stopped unexpectedly")
				}
			}()

			checker.SetReady(true)
			logger.Infof("Listening on :%d", cfg.Port)
			return nil
		},
		stop: func(ctx context.Context) error {
			if server == nil {
				return nil
			}
			checker.SetReady(false)
			return server.Shutdown(ctx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return boot.Stop(stopCtx)
}

func buildServer(
	cfg *config.Config,
	logger ectologger.Logger,
	deps *container.Container,
	consumer *kafka.Consumer,
) (*echo.Echo, *health.Checker) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(echomiddleware.Recover())

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		api.Use(middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	}

	claims.Register(api.Group("/claims"))
	claims.RegisterBatches(api.Group("/batches"))
	reference.Register(api.Group("/reference"))

	// The consumer and redis pointers may be nil; keep the interfaces nil too
	// so the health check skips them.
	var kafkaCheck interface{ Health() bool }
	if consumer != nil {
		kafkaCheck = consumer
	}
	var redisCheck interface {
		Ping(ctx context.Context) error
	}
	if deps.Redis != nil {
		redisCheck = deps.Redis
	}
	checker := health.NewChecker(deps.DB, redisCheck, kafkaCheck, deps.Manager, cfg.Version)
	checker.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e, checker
}

func httpServer(cfg *config.Config, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

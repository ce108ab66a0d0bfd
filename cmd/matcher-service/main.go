package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/minhnq-dev/jobmatch-be/internal/api/handler"
	"github.com/minhnq-dev/jobmatch-be/internal/api/router"
	"github.com/minhnq-dev/jobmatch-be/internal/config"
	"github.com/minhnq-dev/jobmatch-be/internal/core/dispatcher"
	"github.com/minhnq-dev/jobmatch-be/internal/core/profiles"
	"github.com/minhnq-dev/jobmatch-be/internal/core/scheduler"
	"github.com/minhnq-dev/jobmatch-be/internal/core/statestore"
	"github.com/minhnq-dev/jobmatch-be/internal/coverletter/gemini"
	"github.com/minhnq-dev/jobmatch-be/internal/notify"
	"github.com/minhnq-dev/jobmatch-be/internal/platform"
	"github.com/minhnq-dev/jobmatch-be/internal/platform/freelancer"
	"github.com/minhnq-dev/jobmatch-be/shared/logger"
	"github.com/minhnq-dev/jobmatch-be/shared/postgresql"
	"github.com/minhnq-dev/jobmatch-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("MATCHER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/matcher-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	instanceID := uuid.New().String()
	appLogger.Info("Starting matcher service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("instance_id", instanceID),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// State store backed by Postgres, hydrated before anything else runs
	store := statestore.New(&statestore.Config{
		Logger:        appLogger.Logger,
		Persister:     statestore.NewPostgresPersister(dbClient),
		SaveRetries:   cfg.Matcher.SaveRetries,
		SaveRetryBase: cfg.Matcher.SaveRetryBase,
	})

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Load(loadCtx)
	loadCancel()
	if err != nil {
		return fmt.Errorf("failed to load state store: %w", err)
	}

	profileStore := profiles.NewStore(dbClient)

	// Platform registry
	registry := platform.NewRegistry()
	if err := registry.Register(freelancer.NewClient(&freelancer.Config{
		APIBase:     cfg.Freelancer.APIBase,
		Token:       cfg.Freelancer.Token,
		SearchLimit: cfg.Freelancer.SearchLimit,
	}, appLogger.Logger)); err != nil {
		return fmt.Errorf("failed to register platform: %w", err)
	}

	appLogger.Info("Platforms registered",
		slog.Any("platforms", registry.Names()),
	)

	// Cover letter generator
	generator, err := gemini.NewGenerator(context.Background(), &gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		MaxRetries: cfg.Gemini.MaxRetries,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cover letter generator: %w", err)
	}

	// Engine: queue, dispatcher, scheduler
	queue := dispatcher.NewQueue()
	presenter := notify.NewAMQPNotifier(rabbitClient, appLogger.Logger)

	disp := dispatcher.New(&dispatcher.Config{
		Logger:            appLogger.Logger,
		Store:             store,
		Queue:             queue,
		Profiles:          profileStore,
		Registry:          registry,
		Presenter:         presenter,
		Generator:         generator,
		DispatchInterval:  cfg.Matcher.DispatchInterval,
		GenerationTimeout: cfg.Matcher.GenerationTimeout,
		BidTimeout:        cfg.Matcher.BidTimeout,
	})

	sched := scheduler.New(&scheduler.Config{
		Logger:        appLogger.Logger,
		Store:         store,
		Profiles:      profileStore,
		Registry:      registry,
		Queue:         queue,
		PollInterval:  cfg.Matcher.PollInterval,
		SearchTimeout: cfg.Matcher.SearchTimeout,
	})

	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()

	disp.Recover(engineCtx)
	disp.Start(engineCtx)

	// Decisions can also arrive over the queue from the gateway
	decisions := notify.NewDecisionConsumer(rabbitClient, disp, appLogger.Logger)
	if err := decisions.Start(engineCtx); err != nil {
		return fmt.Errorf("failed to start decision consumer: %w", err)
	}

	// HTTP API
	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:     appLogger.Logger,
		Store:      store,
		Profiles:   profileStore,
		Scheduler:  sched,
		Dispatcher: disp,
		Health:     dbClient,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Matcher service is running",
		slog.String("address", addr),
		slog.Duration("poll_interval", cfg.Matcher.PollInterval),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")

	// Stop discovery first so nothing new enters the pipeline, then the
	// dispatcher, then the HTTP server and connections.
	sched.StopAll()
	decisions.Stop()
	disp.Stop()
	engineCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	cleanup := func() {
		cancel()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}

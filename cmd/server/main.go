package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hester-Clapp/exploding-ponies/internal/config"
	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/Hester-Clapp/exploding-ponies/internal/history"
	"github.com/Hester-Clapp/exploding-ponies/internal/repository"
	"github.com/Hester-Clapp/exploding-ponies/internal/room"
	"github.com/Hester-Clapp/exploding-ponies/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting exploding ponies server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var (
		managerOpts game.ManagerOptions
		httpOpts    server.HTTPOptions
	)

	// Result storage is optional
	if cfg.Database.Enabled() {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}

		stats := db.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		results := repository.NewResultRepository(db)
		managerOpts.Results = results
		httpOpts.Results = results
	} else {
		logger.Info("no database configured; hand results will not be stored")
	}

	// So is the action log
	if cfg.Redis.Enabled() {
		client, err := history.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()

		log := history.NewLog(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL, logger)
		managerOpts.Log = log
		httpOpts.History = log
		logger.Info("action log initialized", zap.String("key_prefix", cfg.Redis.KeyPrefix))
	}

	if cfg.Replay.Enabled {
		if err := os.MkdirAll(cfg.Replay.Dir, 0o755); err != nil {
			logger.Fatal("failed to create replay directory", zap.Error(err))
		}
		recorder := game.NewReplayRecorder(logger, cfg.Replay.Dir)
		managerOpts.Recorder = recorder
		httpOpts.Replays = recorder
		logger.Info("replay recording enabled", zap.String("dir", cfg.Replay.Dir))
	}

	gameMgr := game.NewManager(logger, managerOpts)
	logger.Info("game manager initialized")

	rooms := room.NewRegistry(gameMgr, room.Options{
		Defaults: room.Settings{
			Capacity: cfg.Game.MaxSeats,
			NumDecks: cfg.Game.NumDecks,
			Cooldown: cfg.Game.Cooldown,
		},
		MaxRooms:      cfg.Server.MaxRooms,
		InputTimeout:  cfg.Game.InputTimeout,
		FuseTimeout:   cfg.Game.FuseTimeout,
		BotDelayScale: cfg.Game.BotDelayScale,
	}, logger)
	logger.Info("room registry initialized", zap.Int("max_rooms", cfg.Server.MaxRooms))

	httpServer := server.NewHTTPServer(cfg.Server, rooms, httpOpts, logger).Server()
	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC health server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start HTTP and WebSocket server
	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if httpErr := httpServer.ListenAndServe(); httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(httpErr))
		}
	}()

	logger.Info("exploding ponies server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.Duration("cooldown", cfg.Game.Cooldown),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	// Shutdown does not wait for hijacked WebSockets; stop the hands and bots directly.
	rooms.CloseAll()
	gameMgr.CloseAll()
	grpcServer.Stop()

	logger.Info("exploding ponies server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

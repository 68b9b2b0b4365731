package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"farmchain/config"
	"farmchain/core"
	"farmchain/integrations/eventlog"
	"farmchain/integrations/webhooks"
	"farmchain/observability/logging"
	telemetry "farmchain/observability/otel"
	"farmchain/rpc"
	"farmchain/storage"
)

const serviceName = "farmd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml or .yaml)")
	autoMine := flag.Bool("automine", false, "Seal a block after every successful call")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	if err := run(cfg, *autoMine, logger); err != nil {
		logger.Error("farmd exited with error", slog.Any("error", err))
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, autoMine bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	genesis, err := core.GenesisFromConfig(cfg)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg.Database, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	node, err := core.NewNode(db, genesis, nil)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("start node: %w", err)
	}
	defer node.Close()
	node.SetLogger(logger.With(slog.String("component", "core")))
	node.SetAutoMine(autoMine)
	for _, module := range cfg.Pauses.Modules() {
		node.SetPaused(module, true)
	}

	var (
		events *eventlog.Store
		sinks  core.Sinks
	)
	if path := strings.TrimSpace(cfg.EventLog.Path); path != "" {
		events, err = eventlog.Open(path)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer events.Close()
		sinks = append(sinks, events)
	}
	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		dispatcher, err := webhooks.NewDispatcher(endpoint, []byte(cfg.Webhook.Secret),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxRetries, 0, 0),
			webhooks.WithDrainTimeout(time.Duration(cfg.Webhook.DrainTimeoutSeconds)*time.Second),
			webhooks.WithEventTypes(cfg.Webhook.EventTypes...))
		if err != nil {
			return fmt.Errorf("start webhook dispatcher: %w", err)
		}
		defer dispatcher.Close()
		sinks = append(sinks, dispatcher)
	}
	if len(sinks) > 0 {
		node.SetEventSink(sinks)
	}

	server, err := rpc.NewServer(node, events, rpc.ServerConfig{
		AuthToken:         cfg.RPC.AuthToken,
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		DevMethods:        cfg.RPC.DevMethods,
		JWT: rpc.JWTConfig{
			Secret:   cfg.RPC.JWTSecret,
			Issuer:   cfg.RPC.JWTIssuer,
			Audience: cfg.RPC.JWTAudience,
		},
	}, logger.With(slog.String("component", "rpc")))
	if err != nil {
		return err
	}

	head := node.Head()
	logger.Info("farm ledger ready",
		slog.Uint64("height", head.Height),
		slog.String("database", cfg.Database),
		slog.Bool("automine", autoMine),
		slog.Bool("webhook", cfg.Webhook.Endpoint != ""),
		logging.MaskField("authToken", cfg.RPC.AuthToken))

	clock := core.NewClock(node, time.Duration(cfg.BlockIntervalSeconds)*time.Second, logger.With(slog.String("component", "clock")))
	clockDone := make(chan error, 1)
	go func() { clockDone <- clock.Run(ctx) }()

	serveErr := server.Serve(ctx, cfg.RPCAddress)
	stop()
	if err := <-clockDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("block clock stopped", slog.Any("error", err))
	}
	logger.Info("farm ledger shutting down", slog.Uint64("height", node.Head().Height))
	return serveErr
}

// openDatabase opens the configured key-value backend under dataDir.
func openDatabase(backend, dataDir string) (storage.Database, error) {
	switch backend {
	case config.DatabaseMemory:
		return storage.NewMemDB(), nil
	case config.DatabaseBolt:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(dataDir, "farm.bolt"))
	case config.DatabaseLevelDB, "":
		return storage.NewLevelDB(filepath.Join(dataDir, "state"))
	default:
		return nil, fmt.Errorf("unknown database backend %q", backend)
	}
}

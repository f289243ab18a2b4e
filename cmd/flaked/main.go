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
	"syscall"
	"time"

	"flakeledger/config"
	"flakeledger/core"
	"flakeledger/crypto"
	"flakeledger/observability/logging"
	telemetry "flakeledger/observability/otel"
	"flakeledger/rpc"
	"flakeledger/storage"
)

func main() {
	configFile := flag.String("config", "./flaked.toml", "Path to the configuration file (.toml, .yaml or .yml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, closer := logging.Setup("flaked", cfg.Logging.Env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("flaked exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("flaked stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "flaked",
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, logger)
	if err != nil {
		return err
	}
	node.SetEventRetention(cfg.EventRetention)
	if err := bootstrapLedger(node, cfg, logger); err != nil {
		return err
	}

	if cfg.Auth.HMACSecret == "" {
		logger.Warn("no JWT secret configured; authenticated RPC methods will be rejected",
			slog.String("secretEnv", cfg.Auth.HMACSecretEnv))
	} else {
		logger.Info("rpc authentication enabled",
			logging.MaskField("hmacSecret", cfg.Auth.HMACSecret),
			slog.String("issuer", cfg.Auth.Issuer),
			slog.String("audience", cfg.Auth.Audience))
	}

	server := rpc.NewServer(node, rpc.ServerConfig{
		Auth: rpc.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSecs) * time.Second,
		},
		RateLimit:    rpc.RateLimit{RatePerSecond: cfg.RateLimit.RatePerSecond, Burst: cfg.RateLimit.Burst},
		ReadTimeout:  time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.RPCWriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.RPCIdleTimeout) * time.Second,
	}, logger)
	return server.Serve(ctx, cfg.RPCAddress)
}

// bootstrapLedger applies the configured genesis the first time the data
// directory is used. Later starts ignore the genesis section.
func bootstrapLedger(node *core.Node, cfg *config.Config, logger *slog.Logger) error {
	ok, err := node.Bootstrapped()
	if err != nil {
		return err
	}
	if ok {
		roles, err := node.FlakeRoles()
		if err != nil {
			return err
		}
		logger.Info("opened existing ledger",
			slog.String("owner", crypto.FormatAddress(roles.Owner)),
			slog.String("oracle", crypto.FormatAddress(roles.Oracle)),
			slog.Uint64("lastEvent", node.LastSequence()))
		return nil
	}
	genesis, err := cfg.ParseGenesis()
	if err != nil {
		return fmt.Errorf("ledger not bootstrapped and genesis invalid: %w", err)
	}
	if err := node.Bootstrap(genesis.Owner, genesis.Oracle, genesis.Alloc); err != nil && !errors.Is(err, core.ErrAlreadyBootstrapped) {
		return fmt.Errorf("bootstrap ledger: %w", err)
	}
	logger.Info("bootstrapped ledger",
		slog.String("owner", crypto.FormatAddress(genesis.Owner)),
		slog.Int("allocations", len(genesis.Alloc)))
	return nil
}

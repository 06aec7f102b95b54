package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	bolt "go.etcd.io/bbolt"

	"github.com/merlox/ethereum-store/config"
	"github.com/merlox/ethereum-store/core"
	"github.com/merlox/ethereum-store/core/events"
	"github.com/merlox/ethereum-store/gateway/middleware"
	"github.com/merlox/ethereum-store/gateway/routes"
	nativecommon "github.com/merlox/ethereum-store/native/common"
	"github.com/merlox/ethereum-store/native/identity"
	"github.com/merlox/ethereum-store/observability"
	"github.com/merlox/ethereum-store/observability/journal"
	"github.com/merlox/ethereum-store/observability/logging"
	telemetry "github.com/merlox/ethereum-store/observability/otel"
	"github.com/merlox/ethereum-store/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./market.toml", "path to marketd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	env := strings.TrimSpace(cfg.Environment)
	if override := strings.TrimSpace(os.Getenv("MARKET_ENV")); override != "" {
		env = override
	}
	logger := logging.Setup("marketd", env, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, env, logger); err != nil {
		logger.Error("marketd exited", "error", err)
		os.Exit(1)
	}
}

// identityStore is the registry surface marketd needs for seeding.
type identityStore interface {
	identity.Registry
	CreateIdentity(addr [20]byte, alias string, verified bool, now int64) (identity.Record, error)
}

func run(ctx context.Context, cfg *config.Config, env string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: env,
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
		_ = shutdownTelemetry(shutdownCtx)
	}()

	if strings.TrimSpace(cfg.GenesisFile) == "" {
		return errors.New("GenesisFile is required")
	}
	genesis, err := config.LoadGenesis(cfg.GenesisFile)
	if err != nil {
		return err
	}

	if cfg.Backend == config.BackendLevelDB {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.Backend, cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	registry, closeRegistry, err := openIdentity(cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	stream := events.NewStream()
	emitters := events.Multi{observability.Events(), stream}
	var eventLog *journal.Journal
	if dsn := strings.TrimSpace(cfg.JournalDSN); dsn != "" {
		eventLog, err = journal.Open(dsn, logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer eventLog.Close()
		emitters = append(emitters, eventLog)
	}

	market, err := core.NewMarketplace(db, core.Options{
		Vault:           genesis.Vault,
		Identity:        registry,
		RequireIdentity: cfg.RequireIdentity,
		Pauses:          nativecommon.NewStaticPauses(cfg.Paused),
		Emitter:         emitters,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	applied, err := market.Bootstrap(seedFromGenesis(genesis))
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if applied {
		if err := seedIdentities(registry, genesis, time.Now().Unix()); err != nil {
			return err
		}
		logger.Info("genesis applied", "balances", len(genesis.Balances), "operators", len(genesis.Operators)+1)
	}

	var source routes.EventSource
	if eventLog != nil {
		source = eventLog
	}
	handler, err := routes.New(routes.Config{
		Market: market,
		Events: source,
		Stream: stream,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.Secret(),
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			LogRequests: true,
		}, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger),
		CORS:   middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := listen(cfg.ListenAddress, cfg.MaxConnections)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("marketd listening", "address", ln.Addr().String(), "backend", cfg.Backend,
			"maxConnections", cfg.MaxConnections)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openIdentity(cfg *config.Config) (identityStore, func(), error) {
	path := strings.TrimSpace(cfg.IdentityDB)
	if path == "" {
		return identity.NewMemoryRegistry(), func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create identity dir: %w", err)
		}
	}
	registry, err := identity.OpenBoltRegistry(path, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("open identity registry: %w", err)
	}
	return registry, func() { _ = registry.Close() }, nil
}

// Package main is the entrypoint for the haven-relay server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/havenworlds/haven-relay/internal/components/gitproxy"
	"github.com/havenworlds/haven-relay/internal/components/identity"
	"github.com/havenworlds/haven-relay/internal/components/mailbox"
	"github.com/havenworlds/haven-relay/internal/platform/config"
	"github.com/havenworlds/haven-relay/internal/platform/http/server"
	"github.com/havenworlds/haven-relay/internal/platform/store"

	// Register store drivers
	_ "github.com/havenworlds/haven-relay/internal/platform/store/loader"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory, valkey, or sqlite (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	gitUpstream := flag.String("git-upstream", "", "Upstream repository host (overrides config)")
	gitAccount := flag.String("git-account", "", "Upstream account segment (overrides config)")
	gitUsername := flag.String("git-username", "", "Upstream credential username (overrides config)")
	gitToken := flag.String("git-token", "", "Upstream credential token (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:   listenAddr,
			LoggingLevel: loggingLevel,
			StoreDriver:  storeDriver,
			GitUpstream:  gitUpstream,
			GitAccount:   gitAccount,
			GitUsername:  gitUsername,
			GitToken:     gitToken,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("instance_id", uuid.NewString())
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	st, err := store.NewFromConfig(cfg.Store.Driver, cfg.Store.Drivers)
	if err != nil {
		logger.Error("failed to create store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	proxy, err := gitproxy.New(cfg.GitProxy, logger)
	if err != nil {
		logger.Error("failed to create git proxy", "error", err)
		os.Exit(1)
	}
	if cfg.GitProxy.Username == "" && cfg.GitProxy.Token == "" {
		logger.Warn("git proxy has no upstream credential; forwarding unauthenticated")
	}

	expiry := time.Duration(cfg.Mailbox.ExpirySeconds) * time.Second
	srv := server.New(cfg, logger, &server.Deps{
		Registrar: identity.NewRegistrar(st, logger),
		Mailboxes: mailbox.NewRepository(st, expiry, logger),
		GitProxy:  proxy,
	})

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("haven-relay running", "addr", cfg.ListenAddr, "store", cfg.Store.Driver)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

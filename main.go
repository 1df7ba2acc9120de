package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"gopkg.in/vrecan/death.v3"

	"concert-tickets/config"
	"concert-tickets/database"
	"concert-tickets/handlers"
	"concert-tickets/router"
	"concert-tickets/ticketing"
	"concert-tickets/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, listenAddr, storeDriver, logLevel string

	flagSet := pflag.NewFlagSet("concert-tickets", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file")
	flagSet.StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides LISTEN_ADDR)")
	flagSet.StringVar(&storeDriver, "store", "", "record store: memory, badger, mongo or postgres (overrides STORE_DRIVER)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.ListenAddr = listenAddr
	}
	if flagSet.Changed("store") {
		cfg.StoreDriver = storeDriver
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	service := ticketing.New(store, token.NewLedger(cfg.MintAuthority), ticketing.NewPolicy(cfg.AdminIdentity), logger)

	app := fiber.New()
	router.SetupRoutes(app, handlers.New(service, cfg, logger), cfg.JWTSecret)

	logger.Info("listening", "event", "startup", "addr", cfg.ListenAddr, "store", cfg.StoreDriver)

	stop := make(chan struct{})
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	go d.WaitForDeathWithFunc(func() { close(stop) })

	return serve(app, cfg.ListenAddr, stop, store, logger)
}

// serve runs app until stop is closed or the listener fails, then closes
// store. A listener failure is returned.
func serve(app *fiber.App, addr string, stop <-chan struct{}, store io.Closer, logger *slog.Logger) error {
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(addr)
	}()

	var err error
	select {
	case err = <-listenErr:
		if err == nil {
			err = errors.New("listener stopped unexpectedly")
		}
		err = fmt.Errorf("listen on %s: %w", addr, err)
		logger.Error("listener stopped", "event", "listen_failed", "error", err.Error())
	case <-stop:
		logger.Info("shutting down", "event", "shutdown")
		if shutdownErr := app.Shutdown(); shutdownErr != nil {
			logger.Error("http shutdown", "error", shutdownErr.Error())
		}
	}

	if closeErr := store.Close(); closeErr != nil {
		logger.Error("store close", "error", closeErr.Error())
	}
	return err
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func openStore(cfg config.Config, logger *slog.Logger) (database.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return database.NewMemory(), nil
	case config.StoreBadger:
		return database.OpenBadger(cfg.BadgerPath, logger)
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return database.OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

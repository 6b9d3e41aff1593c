package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"ballot/internal/admin"
	"ballot/internal/platform/config"
	"ballot/internal/platform/httpserver"
	"ballot/internal/platform/logger"
)

// main parses flags, wires the services and runs the HTTP server until a
// signal arrives. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()

	flags := pflag.NewFlagSet("ballot", pflag.ExitOnError)
	addr := flags.String("addr", cfg.Addr, "HTTP listen address")
	seedFile := flags.String("seed-file", cfg.SeedFile, "YAML file with elections, candidates and voters to load at startup")
	backend := flags.String("ledger-backend", cfg.Ledger.Backend, "ledger journal backend: memory, leveldb or postgres")
	hashPassword := flags.String("hash-password", "", "print the bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	_ = flags.Parse(os.Args[1:])

	if *hashPassword != "" {
		hash, err := admin.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}
	cfg.Addr = *addr
	cfg.SeedFile = *seedFile
	cfg.Ledger.Backend = *backend

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := httpserver.New(cfg.Addr, app.router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.events.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if app.limiter != nil {
		g.Go(func() error {
			app.limiter.RunSweeper(gctx, cfg.RateLimit.Window)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting ballot server",
			"addr", cfg.Addr,
			"ledger_backend", cfg.Ledger.Backend,
			"hash_algorithm", cfg.Ledger.HashAlgorithm,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

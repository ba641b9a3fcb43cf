package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/itchan-dev/crosspost/internal/router"
	"github.com/itchan-dev/crosspost/internal/sealed"
	"github.com/itchan-dev/crosspost/internal/setup"
	"github.com/itchan-dev/crosspost/shared/config"
	"github.com/itchan-dev/crosspost/shared/logger"
)

func main() {
	var (
		configFolder string
		addr         string
		genKey       bool
	)
	pflag.StringVar(&configFolder, "config_folder", "config", "path to folder with public.yaml and private.yaml")
	pflag.StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	pflag.BoolVar(&genKey, "generate-session-key", false, "print a new session_key for private.yaml and exit")
	pflag.Parse()

	if genKey {
		key, err := sealed.GenerateKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.Log.Level, cfg.Public.Log.JSON)
	if addr != "" {
		cfg.Public.HTTP.Addr = addr
	}

	if err := run(cfg); err != nil {
		logger.Log.Error("crosspost stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Log.Info("crosspost stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.SetupDependencies(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Log.Error("error closing session storage", "error", err)
		}
	}()

	deps.Status.StartBackgroundRefresh(ctx, cfg.Public.Posting.StatusRefreshTick)

	server := &http.Server{
		Addr:    cfg.Public.HTTP.Addr,
		Handler: router.New(deps),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Log.Info("server started", "addr", server.Addr)
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Log.Info("received shutdown signal, shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Public.HTTP.ShutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

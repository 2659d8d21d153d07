package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	httpadapter "github.com/sutakip/sutakip/internal/adapter/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the snapshot over HTTP and refresh it in the background",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.store, a.refresher, a.refresher, httpadapter.Options{
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
		RefreshTimeout: a.cfg.RefreshTimeout,
	}, a.logger)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := a.scheduler().Run(ctx); err != nil {
			a.logger.Error("scheduler error", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		a.logger.Error("http server error", "error", err)
		stop()
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("http server shutdown error", "error", serr)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("scheduler did not stop before shutdown timeout")
	}

	a.logger.Info("shutdown complete")
	return err
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docweave/internal/api"
	"github.com/dgallion1/docweave/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the weave HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	flags := cmd.Flags()
	flags.String("port", "", "listen port (default 8090)")
	flags.Int("workers", 0, "concurrent weave jobs (default 4)")
	flags.String("dialects-file", "", "CUE file with custom dialects")
	flags.Duration("timeout", 0, "per-chunk execution limit, 0 for none")
	flags.Bool("no-plot", false, "run without the figure builtins")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}
	reg, err := pipeline.LoadRegistry(a.cfg.Weave)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(a.cfg, reg, a.log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, a.log, a.cfg.Server)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		a.log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	a.log.Info("starting docweave", "port", a.cfg.Server.Port, "workers", a.cfg.Server.WorkerCount, "dialects", len(reg.Names()))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

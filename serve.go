package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AnTengye/contractlens/handler"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.JWTSecret == "" {
			return eris.New("serve: auth.jwt_secret must be set")
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		comp, err := buildComponents(ctx, cfg)
		if err != nil {
			return err
		}

		gin.SetMode(gin.ReleaseMode)
		deps := handler.Deps{
			Config:   cfg,
			Manager:  comp.manager,
			Exporter: comp.exporter,
		}
		if comp.mineru != nil {
			deps.Callback = comp.mineru
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      handler.NewRouter(deps),
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("server starting", "port", cfg.Server.Port, "store", cfg.Store.Driver, "classifier", cfg.Analyzer.Provider)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			_ = comp.Close(context.Background())
			return eris.Wrap(err, "serve: listen")
		}
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutS)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		if err := comp.Close(shutdownCtx); err != nil {
			return eris.Wrap(err, "serve: shutdown")
		}

		slog.Info("server exited gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

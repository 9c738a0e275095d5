package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/abhisek/tutorly/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.HTTP.Addr
		}
		gin.SetMode(a.cfg.HTTP.GinMode)

		h := api.NewHandler(a.manager, a.sources, a.logger)
		router := api.NewRouter(h, api.RouterConfig{
			CORSOrigins: a.cfg.HTTP.CORSOrigins,
			Gatherer:    a.registry,
		})

		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("listening", "addr", addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides TUTORLY_HTTP_ADDR)")
}

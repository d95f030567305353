package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kuitang/blockcheck/internal/keycodes"
	"github.com/kuitang/blockcheck/internal/obs"
	"github.com/kuitang/blockcheck/internal/ratelimit"
	"github.com/kuitang/blockcheck/internal/web"
)

func newServeCmd() *cobra.Command {
	var flags configFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reference block editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			defer obs.Close()
			logger := obs.Pkg("main")

			srv, err := web.NewServer(web.Options{
				Apple:     keycodes.IsApple(cfg.Platform),
				RateLimit: ratelimit.Config{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
			})
			if err != nil {
				return err
			}
			defer srv.Close()

			httpSrv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("server_listening", "addr", cfg.ListenAddr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				logger.Info("server_shutting_down")
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	flags.registerServe(cmd)
	return cmd
}

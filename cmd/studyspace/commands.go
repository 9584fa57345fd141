package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/studyspace/internal/config"
	httptransport "github.com/example/studyspace/internal/http"
	"github.com/example/studyspace/internal/logging"
	"github.com/example/studyspace/internal/telemetry"
)

// cli carries state shared by the subcommands.
type cli struct {
	configFile string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "studyspace",
		Short:        "Study space reservation service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML config file (STUDYSPACE_* variables take precedence)")

	root.AddCommand(c.serveCommand(), c.migrateCommand(), c.seedCommand(), c.sweepCommand())
	return root
}

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the completion sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			a.shutdown()
			return nil
		},
	}
}

func (c *cli) seedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load study spaces from a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = c.cfg.CatalogFile
			}
			if file == "" {
				return errors.New("seed: --file or STUDYSPACE_CATALOG_FILE is required")
			}
			a, err := openApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.shutdown()

			written, err := a.seed(cmd.Context(), file)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d resources\n", written)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file")
	return cmd
}

func (c *cli) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark elapsed reservations completed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.shutdown()

			if err := a.reservations.Rebuild(cmd.Context()); err != nil {
				return err
			}
			completed, err := a.reservations.CompleteElapsed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %d reservations\n", completed)
			return nil
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{Stdout: c.cfg.MetricsStdout})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			c.logger.Error("failed to flush metrics", "error", err)
		}
	}()

	a, err := openApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	if c.cfg.CatalogFile != "" {
		written, err := a.seed(ctx, c.cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		c.logger.InfoContext(ctx, "catalog seeded", "file", c.cfg.CatalogFile, "written", written)
	}
	if err := a.reservations.Rebuild(ctx); err != nil {
		return err
	}

	limiter := httptransport.NewRateLimiter(c.cfg.RateLimitRPS, c.cfg.RateLimitBurst, c.logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.HTTPPort),
		Handler:           newHandler(a, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		c.logger.Info("studyspace API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		runSweeper(ctx, a, c.cfg.SweepInterval, limiter)
		return nil
	})
	return group.Wait()
}

// runSweeper completes elapsed reservations and prunes idle rate-limit
// entries every interval until ctx ends.
func runSweeper(ctx context.Context, a *app, interval time.Duration, limiter *httptransport.RateLimiter) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if completed, err := a.reservations.CompleteElapsed(ctx); err != nil {
				a.logger.ErrorContext(ctx, "completion sweep failed", "error", err)
			} else if completed > 0 {
				a.logger.InfoContext(ctx, "completion sweep", "completed", completed)
			}
			limiter.Prune()
		}
	}
}

func newHandler(a *app, limiter *httptransport.RateLimiter) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Resources:    httptransport.NewResourceHandler(a.resources, a.logger),
		Reservations: httptransport.NewReservationHandler(a.reservations, a.cfg.Location, a.logger),
		Sessions:     httptransport.NewSessionHandler(a.sessions, a.logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(a.logger),
			limiter.Middleware,
			httptransport.RequireUser(a.logger),
		},
	})
}

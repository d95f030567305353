package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/blockcheck/internal/config"
	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/driver/cdp"
	"github.com/kuitang/blockcheck/internal/driver/pw"
	"github.com/kuitang/blockcheck/internal/driver/sim"
	"github.com/kuitang/blockcheck/internal/keycodes"
	"github.com/kuitang/blockcheck/internal/obs"
	"github.com/kuitang/blockcheck/internal/ratelimit"
	"github.com/kuitang/blockcheck/internal/runner"
	"github.com/kuitang/blockcheck/internal/s3client"
	"github.com/kuitang/blockcheck/internal/scenarios"
	"github.com/kuitang/blockcheck/internal/snapshot"
	"github.com/kuitang/blockcheck/internal/web"
)

func newRunCmd() *cobra.Command {
	var (
		flags  configFlags
		report string
		filter string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the block deletion suite",
		Long: `Run the block deletion suite and print a summary.

Exits 1 when any scenario failed and 2 on configuration errors. With a
browser driver and no --base-url, the local reference editor is started on a
loopback port for the duration of the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			defer obs.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSuite(ctx, cmd, cfg, filter, report)
		},
	}
	flags.registerRun(cmd)
	cmd.Flags().StringVar(&report, "report", "", "also write the report to this file (.md, .html or .json)")
	cmd.Flags().StringVar(&filter, "filter", "", "run only scenarios whose name contains this text")
	return cmd
}

func runSuite(ctx context.Context, cmd *cobra.Command, cfg *config.Config, filter, reportPath string) error {
	cfg.PrintStartupSummary()
	runID := obs.NewID("run")
	logger := obs.From(obs.WithCorrelation(ctx, obs.Correlation{RunID: runID})).With("pkg", "main")
	apple := keycodes.IsApple(cfg.Platform)

	baseURL := cfg.BaseURL
	if cfg.UsesBrowser() && baseURL == "" {
		url, shutdown, err := startLocalEditor(cfg, apple)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = url
		logger.Info("local_editor_started", "url", baseURL)
	}

	flavor, err := driver.FlavorByName(cfg.Flavor)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	opts := driver.Options{
		BaseURL:       baseURL,
		Flavor:        flavor,
		Apple:         apple,
		Headless:      cfg.Headless,
		ActionTimeout: cfg.ActionTimeout,
		StorageState:  cfg.StorageState,
		RunID:         runID,
	}
	factory, err := newFactory(ctx, cfg.Driver, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := factory.Close(); err != nil {
			logger.Warn("driver_close_failed", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	r := runner.New(runner.Options{
		Factory:         factory,
		Store:           store,
		GateEnabled:     cfg.GateEnabled,
		ScenarioTimeout: cfg.ScenarioTimeout,
		Filter:          filter,
		RunID:           runID,
		Suite:           scenarios.SuiteName,
	})
	rep, err := r.Run(ctx, scenarios.Suite())
	if rep != nil {
		fmt.Fprint(cmd.OutOrStdout(), rep.Text())
	}
	if err != nil {
		return err
	}
	if reportPath != "" {
		if err := writeReport(rep, reportPath); err != nil {
			return err
		}
	}
	if code := rep.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func newFactory(ctx context.Context, name string, opts driver.Options) (driver.Factory, error) {
	switch name {
	case config.DriverPlaywright:
		return pw.NewFactory(ctx, opts)
	case config.DriverChromedp:
		return cdp.NewFactory(ctx, opts)
	default:
		return sim.NewFactory(opts)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*snapshot.Store, error) {
	mode, err := snapshot.ParseMode(cfg.SnapshotMode)
	if err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return snapshot.Open(ctx, backend, scenarios.SuiteName, mode)
}

// openBackend stores snapshots in S3 when a bucket is configured and in the
// snapshot directory otherwise.
func openBackend(ctx context.Context, cfg *config.Config) (snapshot.Backend, error) {
	if cfg.SnapshotBucket != "" {
		client, err := s3client.New(ctx, s3client.Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.SnapshotBucket,
			UsePathStyle:    cfg.AWSEndpointS3 != "",
		})
		if err != nil {
			return nil, err
		}
		return snapshot.NewS3Backend(client, cfg.SnapshotPrefix), nil
	}
	return snapshot.NewFileBackend(cfg.SnapshotDir), nil
}

// startLocalEditor serves the reference editor on a loopback port.
func startLocalEditor(cfg *config.Config, apple bool) (string, func(), error) {
	srv, err := web.NewServer(web.Options{
		Apple:     apple,
		RateLimit: ratelimit.Config{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
	})
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		srv.Close()
		return "", nil, fmt.Errorf("listen for local editor: %w", err)
	}
	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Pkg("main").Error("local_editor_failed", "error", err)
		}
	}()
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
		srv.Close()
	}
	return "http://" + ln.Addr().String(), shutdown, nil
}

func writeReport(rep *runner.Report, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		data, err = rep.HTML()
	case ".json":
		data, err = rep.JSON()
	default:
		data = []byte(rep.Markdown())
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

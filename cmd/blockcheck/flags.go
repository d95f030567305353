package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/blockcheck/internal/config"
)

// configFlags are the command-line overrides of environment configuration.
// Only flags the user actually set replace the loaded values.
type configFlags struct {
	driver          string
	flavor          string
	baseURL         string
	platform        string
	headless        bool
	gates           []string
	snapshotDir     string
	snapshotMode    string
	update          bool
	ci              bool
	actionTimeout   time.Duration
	scenarioTimeout time.Duration
	listenAddr      string
	logLevel        string
	logFile         string
}

func (f *configFlags) registerRun(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.driver, "driver", config.DriverSim, "driver: sim, playwright or chromedp (env BLOCKCHECK_DRIVER)")
	fs.StringVar(&f.flavor, "flavor", config.FlavorLocal, "editor flavor: local or wordpress (env EDITOR_FLAVOR)")
	fs.StringVar(&f.baseURL, "base-url", "", "editor origin; empty starts the local editor for browser drivers (env BASE_URL)")
	fs.StringVar(&f.platform, "platform", "", "platform used to resolve modifier aliases, e.g. darwin (env BLOCKCHECK_PLATFORM)")
	fs.BoolVar(&f.headless, "headless", true, "run the browser headless (env HEADLESS)")
	fs.StringVar(&f.snapshotDir, "snapshot-dir", "", "directory holding snapshot files (env SNAPSHOT_DIR)")
	fs.StringVar(&f.snapshotMode, "snapshot-mode", "", "snapshot mode: record, update or ci (env SNAPSHOT_MODE)")
	fs.BoolVarP(&f.update, "update", "u", false, "overwrite mismatching snapshots")
	fs.BoolVar(&f.ci, "ci", false, "fail on missing snapshots and never write")
	fs.DurationVar(&f.actionTimeout, "action-timeout", 0, "wait budget for one driver call (env ACTION_TIMEOUT)")
	fs.DurationVar(&f.scenarioTimeout, "scenario-timeout", 0, "budget for one scenario (env SCENARIO_TIMEOUT)")
	f.registerCommon(cmd)
}

func (f *configFlags) registerServe(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.listenAddr, "listen", "", "listen address (env LISTEN_ADDR)")
	cmd.Flags().StringVar(&f.platform, "platform", "", "platform used for the editor keymap (env BLOCKCHECK_PLATFORM)")
	f.registerCommon(cmd)
}

func (f *configFlags) registerCommon(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.gates, "gates", nil, `scenario gates to enable, or "all" (env BLOCKCHECK_GATES)`)
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	fs.StringVar(&f.logFile, "log-file", "", "write logs to a rotated file instead of stderr (env LOG_FILE)")
}

func (f *configFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("driver") {
		cfg.Driver = f.driver
	}
	if changed("flavor") {
		cfg.Flavor = f.flavor
	}
	if changed("base-url") {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(f.baseURL), "/")
	}
	if changed("platform") {
		cfg.Platform = f.platform
	}
	if changed("headless") {
		cfg.Headless = f.headless
	}
	if changed("gates") {
		cfg.Gates = config.ParseList(strings.Join(f.gates, ","))
	}
	if changed("snapshot-dir") {
		cfg.SnapshotDir = f.snapshotDir
	}
	if changed("snapshot-mode") {
		cfg.SnapshotMode = f.snapshotMode
	}
	if f.update && f.ci {
		return fmt.Errorf("--update and --ci are mutually exclusive")
	}
	if f.update {
		cfg.SnapshotMode = config.SnapshotUpdate
	}
	if f.ci {
		cfg.SnapshotMode = config.SnapshotCI
	}
	if changed("action-timeout") {
		cfg.ActionTimeout = f.actionTimeout
	}
	if changed("scenario-timeout") {
		cfg.ScenarioTimeout = f.scenarioTimeout
	}
	if changed("listen") {
		cfg.ListenAddr = f.listenAddr
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}
	return nil
}

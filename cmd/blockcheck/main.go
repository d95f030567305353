// Command blockcheck runs the block deletion end-to-end suite against a block
// editor, either the reference editor in-process or a real editor in a
// browser, and serves the reference editor for browser runs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuitang/blockcheck/internal/config"
	"github.com/kuitang/blockcheck/internal/obs"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeOf(err))
	}
}

func exitCodeOf(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 2
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blockcheck",
		Short:         "End-to-end checks for block deletion in a block editor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newListCmd(), newServeCmd())
	return root
}

// loadConfig reads the environment, applies flag overrides and validates.
// Configuration problems exit with status 2.
func loadConfig(cmd *cobra.Command, flags *configFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	obs.InitWithOptions(obs.Options{File: cfg.LogFile, Level: obs.ParseLevel(cfg.LogLevel)})
	obs.Pkg("main").Debug("config_loaded", cfg.LogAttrs()...)
	return cfg, nil
}

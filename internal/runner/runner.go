// Package runner executes scenarios one at a time, each against a fresh
// driver session, and collects a report. A failure aborts only the scenario
// it happens in; nothing is retried.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/obs"
	"github.com/kuitang/blockcheck/internal/scenarios"
	"github.com/kuitang/blockcheck/internal/snapshot"
)

// closeTimeout bounds session teardown after the scenario context is gone.
const closeTimeout = 5 * time.Second

// Options configures a Runner.
type Options struct {
	Factory driver.Factory
	Store   *snapshot.Store
	// GateEnabled reports whether a feature gate is on. Nil enables every gate.
	GateEnabled func(gate string) bool
	// ScenarioTimeout bounds each scenario, fixture included.
	ScenarioTimeout time.Duration
	// Filter keeps scenarios whose name contains it. Empty keeps all.
	Filter string
	RunID  string
	Suite  string
}

// Runner runs scenarios.
type Runner struct {
	opts Options
}

// New creates a runner.
func New(opts Options) *Runner {
	if opts.ScenarioTimeout <= 0 {
		opts.ScenarioTimeout = 30 * time.Second
	}
	if opts.RunID == "" {
		opts.RunID = obs.NewID("run")
	}
	if opts.Suite == "" {
		opts.Suite = scenarios.SuiteName
	}
	return &Runner{opts: opts}
}

// Select returns the scenarios matching the filter.
func (r *Runner) Select(all []scenarios.Scenario) []scenarios.Scenario {
	if r.opts.Filter == "" {
		return all
	}
	var out []scenarios.Scenario
	for _, sc := range all {
		if strings.Contains(sc.Name(), r.opts.Filter) {
			out = append(out, sc)
		}
	}
	return out
}

// Run executes the selected scenarios in order and flushes the snapshot
// store. The returned error covers only problems outside the scenarios,
// such as failing to persist snapshots; scenario failures are in the report.
func (r *Runner) Run(ctx context.Context, all []scenarios.Scenario) (*Report, error) {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: r.opts.RunID})
	logger := obs.From(ctx).With("pkg", "runner")

	selected := r.Select(all)
	report := &Report{
		Suite:   r.opts.Suite,
		RunID:   r.opts.RunID,
		Started: time.Now().UTC(),
	}
	if r.opts.Store != nil {
		report.SnapshotLocation = r.opts.Store.Location()
		// Scenarios filtered out keep their snapshots.
		for _, sc := range all {
			if !contains(selected, sc) {
				r.opts.Store.Retain(sc.Name())
			}
		}
	}
	logger.Info("run_started", "scenarios", len(selected), "suite", r.opts.Suite)

	for _, sc := range selected {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, Result{
				Name:   sc.Name(),
				Status: StatusFailed,
				Kind:   KindOther,
				Err:    err,
			})
			continue
		}
		res := r.runOne(ctx, sc)
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(report.Started)
	if r.opts.Store != nil {
		if r.opts.Store.Mode() == snapshot.ModeUpdate && r.opts.Filter == "" {
			if removed := r.opts.Store.Prune(); len(removed) > 0 {
				logger.Info("snapshots_pruned", "keys", removed)
			}
		}
		report.Snapshots = r.opts.Store.Summary()
		if err := r.opts.Store.Flush(ctx); err != nil {
			return report, err
		}
	}

	logger.Info("run_finished",
		"passed", report.Count(StatusPassed),
		"failed", report.Count(StatusFailed),
		"skipped", report.Count(StatusSkipped),
		"dur_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (r *Runner) runOne(parent context.Context, sc scenarios.Scenario) (res Result) {
	name := sc.Name()
	res = Result{Name: name, Gate: sc.Gate}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	ctx := obs.WithCorrelation(parent, obs.Correlation{RunID: r.opts.RunID, Scenario: name})
	logger := obs.From(ctx).With("pkg", "runner")

	if sc.Gate != "" && r.opts.GateEnabled != nil && !r.opts.GateEnabled(sc.Gate) {
		res.Status = StatusSkipped
		if r.opts.Store != nil {
			r.opts.Store.Retain(name)
		}
		logger.Info("scenario_skipped", "gate", sc.Gate)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.ScenarioTimeout)
	defer cancel()

	sess, err := r.opts.Factory.NewSession(ctx)
	if err != nil {
		return failed(res, "open session", err)
	}
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: r.opts.RunID, Scenario: name, SessionID: sess.ID()})
	sess = driver.WithLogging(sess)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			logger.Warn("session_close_failed", "error", err)
		}
	}()

	var matcher *snapshot.Matcher
	if r.opts.Store != nil {
		matcher = r.opts.Store.Matcher(name)
	}
	t := scenarios.NewT(sess, matcher)

	if sc.Setup != nil {
		err = sc.Setup(ctx, t)
	}
	if err == nil && sc.Run != nil {
		err = sc.Run(ctx, t)
	}
	res.Snapshots = t.Snapshots()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && errs.CodeOf(err) != errs.Timeout {
			err = driver.TimeoutError("scenario to finish", r.opts.ScenarioTimeout, err)
		}
		res = failed(res, t.CurrentStep(), err)
		logger.Warn("scenario_failed", "step", res.Step, "kind", res.Kind, "error", err)
		return res
	}

	res.Status = StatusPassed
	logger.Info("scenario_passed", "snapshots", res.Snapshots)
	return res
}

func failed(res Result, step string, err error) Result {
	res.Status = StatusFailed
	res.Step = step
	res.Err = err
	res.Kind = KindOf(err)
	var mm *snapshot.MismatchError
	if errors.As(err, &mm) {
		res.Diff = mm.Diff
	}
	return res
}

func contains(list []scenarios.Scenario, sc scenarios.Scenario) bool {
	for _, s := range list {
		if s.Name() == sc.Name() {
			return true
		}
	}
	return false
}

// List renders scenario names with their gates, one per line. With a store
// each line also shows how many snapshots the scenario has recorded.
func List(all []scenarios.Scenario, gateEnabled func(string) bool, store *snapshot.Store) string {
	var b strings.Builder
	for _, sc := range all {
		b.WriteString(sc.Name())
		if sc.Gate != "" {
			state := "off"
			if gateEnabled == nil || gateEnabled(sc.Gate) {
				state = "on"
			}
			fmt.Fprintf(&b, "  [gate %s: %s]", sc.Gate, state)
		}
		if store != nil {
			fmt.Fprintf(&b, "  (%d snapshots)", store.Recorded(sc.Name()))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

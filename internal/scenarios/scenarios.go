// Package scenarios holds the block deletion suite: named cases written
// against driver.Session, asserting serialized post content against recorded
// snapshots and the block list against expected shapes.
package scenarios

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/snapshot"
)

// Scenario is one named case. Its full name is the group, case and title
// joined by spaces; snapshot keys are derived from it.
type Scenario struct {
	Group string
	Case  string
	Title string
	// Gate names the feature gate that must be enabled for the scenario to
	// run. Empty means always run.
	Gate string
	// Setup runs before Run, like a per-group beforeEach.
	Setup func(ctx context.Context, t *T) error
	Run   func(ctx context.Context, t *T) error
}

// Name returns the full scenario name.
func (s Scenario) Name() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.Group, s.Case, s.Title} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// T is the per-scenario handle passed to Setup and Run.
type T struct {
	Session driver.Session

	snap *snapshot.Matcher
	step string
}

// NewT binds a session and the scenario's snapshot matcher.
func NewT(sess driver.Session, snap *snapshot.Matcher) *T {
	return &T{Session: sess, snap: snap}
}

// Step records the step about to run; failures are reported against it.
func (t *T) Step(name string) {
	t.step = name
}

// CurrentStep returns the last recorded step.
func (t *T) CurrentStep() string {
	return t.step
}

// Snapshots returns how many snapshot assertions were made.
func (t *T) Snapshots() int {
	if t.snap == nil {
		return 0
	}
	return t.snap.Count()
}

// MatchContentSnapshot compares the serialized post with the next snapshot.
func (t *T) MatchContentSnapshot(ctx context.Context) error {
	if t.snap == nil {
		return errs.New(errs.FailedPrecondition, "no snapshot store")
	}
	content, err := t.Session.SerializedContent(ctx)
	if err != nil {
		return err
	}
	return t.snap.Match(content)
}

// ExpectBlockCount checks how many blocks the block list renders.
func (t *T) ExpectBlockCount(ctx context.Context, want int) error {
	els, err := t.Session.QueryAll(ctx, driver.CSS(BlockSelector))
	if err != nil {
		return err
	}
	return expectEqual("rendered block count", want, len(els))
}

// ExpectContent checks the serialized post against a literal value.
func (t *T) ExpectContent(ctx context.Context, want string) error {
	content, err := t.Session.SerializedContent(ctx)
	if err != nil {
		return err
	}
	return expectEqual("serialized content", want, content)
}

// ExpectDefaultBlockFocused checks where the caret is.
func (t *T) ExpectDefaultBlockFocused(ctx context.Context, want bool) error {
	got, err := t.Session.IsDefaultBlockFocused(ctx)
	if err != nil {
		return err
	}
	return expectEqual("default block focused", want, got)
}

func expectEqual[V comparable](what string, want, got V) error {
	if want == got {
		return nil
	}
	return errs.New(errs.Mismatch, fmt.Sprintf("%s: expected %#v, got %#v", what, want, got))
}

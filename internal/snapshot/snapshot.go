// Package snapshot implements golden-value assertions: serialized content is
// compared against values recorded under "<scenario name> <n>" keys, where n
// counts the assertions made inside one scenario.
//
// A Store loads one suite from a Backend, answers Match calls, and writes the
// suite back on Flush when something was recorded or updated.
package snapshot

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aymanbagabas/go-udiff"

	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/obs"
)

// Mode controls how missing and mismatching snapshots are handled.
type Mode string

const (
	// ModeRecord records missing snapshots and compares existing ones.
	ModeRecord Mode = "record"
	// ModeUpdate overwrites mismatching snapshots with the actual value.
	ModeUpdate Mode = "update"
	// ModeCI never writes: a missing snapshot is a failure.
	ModeCI Mode = "ci"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRecord, ModeUpdate, ModeCI:
		return m, nil
	case "":
		return ModeRecord, nil
	default:
		return "", errs.New(errs.InvalidArgument, fmt.Sprintf("unknown snapshot mode %q", s))
	}
}

// MismatchError carries the recorded and actual values of a failed match.
type MismatchError struct {
	Key      string
	Expected string
	Actual   string
	Diff     string
}

func (e *MismatchError) Error() string {
	return "diff:\n" + e.Diff
}

// Summary counts the outcomes of Match calls.
type Summary struct {
	Matched  int
	Added    int
	Updated  int
	Failed   int
	Obsolete []string
}

func (s Summary) String() string {
	out := fmt.Sprintf("%d matched, %d added, %d updated, %d failed", s.Matched, s.Added, s.Updated, s.Failed)
	if len(s.Obsolete) > 0 {
		out += fmt.Sprintf(", %d obsolete", len(s.Obsolete))
	}
	return out
}

// Store holds the snapshots of one suite.
type Store struct {
	backend Backend
	suite   string
	mode    Mode

	mu      sync.Mutex
	values  map[string]string
	checked map[string]bool
	dirty   bool
	summary Summary
}

// Open loads the suite from backend.
func Open(ctx context.Context, backend Backend, suite string, mode Mode) (*Store, error) {
	values, err := backend.Load(ctx, suite)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, fmt.Sprintf("load snapshots from %s", backend.Location(suite)), err)
	}
	obs.Pkg("snapshot").Debug("snapshots_loaded", "location", backend.Location(suite), "count", len(values), "mode", mode)
	return &Store{
		backend: backend,
		suite:   suite,
		mode:    mode,
		values:  values,
		checked: make(map[string]bool),
	}, nil
}

// Mode returns the store's mode.
func (s *Store) Mode() Mode {
	return s.mode
}

// Location describes where the suite is persisted.
func (s *Store) Location() string {
	return s.backend.Location(s.suite)
}

// Key builds the snapshot key for the n-th assertion of a scenario.
func Key(name string, n int) string {
	return name + " " + strconv.Itoa(n)
}

// Lookup returns the recorded value for key.
func (s *Store) Lookup(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Recorded counts the consecutive snapshots stored for the named scenario,
// starting at 1.
func (s *Store) Recorded(name string) int {
	n := 0
	for {
		if _, ok := s.Lookup(Key(name, n+1)); !ok {
			return n
		}
		n++
	}
}

// Match compares actual with the value recorded under key.
func (s *Store) Match(key, actual string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checked[key] = true
	expected, ok := s.values[key]
	switch {
	case ok && expected == actual:
		s.summary.Matched++
		return nil
	case !ok && s.mode == ModeCI:
		s.summary.Failed++
		return errs.New(errs.Mismatch, fmt.Sprintf("snapshot %q was never recorded; run with --update to record it", key))
	case !ok:
		s.values[key] = actual
		s.dirty = true
		s.summary.Added++
		return nil
	case s.mode == ModeUpdate:
		s.values[key] = actual
		s.dirty = true
		s.summary.Updated++
		return nil
	}

	s.summary.Failed++
	return errs.Wrap(errs.Mismatch, fmt.Sprintf("snapshot %q does not match", key), &MismatchError{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Diff:     udiff.Unified("recorded", "received", withNewline(expected), withNewline(actual)),
	})
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// Retain marks every key of the named scenario as used, so a scenario that
// was skipped does not make its snapshots look obsolete.
func (s *Store) Retain(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := name + " "
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			if _, err := strconv.Atoi(key[len(prefix):]); err == nil {
				s.checked[key] = true
			}
		}
	}
}

// Obsolete returns the recorded keys no Match or Retain call touched.
func (s *Store) Obsolete() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obsoleteLocked()
}

func (s *Store) obsoleteLocked() []string {
	var out []string
	for key := range s.values {
		if !s.checked[key] {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

// Prune deletes obsolete keys. It only has an effect in update mode.
func (s *Store) Prune() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeUpdate {
		return nil
	}
	removed := s.obsoleteLocked()
	for _, key := range removed {
		delete(s.values, key)
	}
	if len(removed) > 0 {
		s.dirty = true
	}
	return removed
}

// Summary returns the outcome counts so far.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := s.summary
	sum.Obsolete = s.obsoleteLocked()
	return sum
}

// Flush persists recorded and updated snapshots. CI mode never writes.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty || s.mode == ModeCI {
		s.mu.Unlock()
		return nil
	}
	values := maps.Clone(s.values)
	s.mu.Unlock()

	// A suite pruned down to nothing leaves no file behind.
	if len(values) == 0 {
		if err := s.backend.Delete(ctx, s.suite); err != nil {
			return errs.Wrap(errs.Unavailable, fmt.Sprintf("delete snapshots at %s", s.Location()), err)
		}
	} else if err := s.backend.Save(ctx, s.suite, values); err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("save snapshots to %s", s.Location()), err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	obs.From(ctx).Info("snapshots_written", "location", s.Location(), "count", len(values))
	return nil
}

// Matcher numbers the assertions of one scenario.
type Matcher struct {
	store *Store
	name  string
	n     int
}

// Matcher returns a matcher for the named scenario. Each scenario run needs
// its own matcher so numbering restarts at 1.
func (s *Store) Matcher(name string) *Matcher {
	return &Matcher{store: s, name: name}
}

// Match checks actual against the next snapshot of the scenario.
func (m *Matcher) Match(actual string) error {
	m.n++
	return m.store.Match(Key(m.name, m.n), actual)
}

// Count returns how many assertions were made.
func (m *Matcher) Count() int {
	return m.n
}

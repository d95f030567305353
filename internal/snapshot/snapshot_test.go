package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/s3client"
)

const suite = "block-deletion"

func openFileStore(t *testing.T, dir string, mode Mode) *Store {
	t.Helper()
	s, err := Open(context.Background(), NewFileBackend(dir), suite, mode)
	require.NoError(t, err)
	return s
}

func TestStore_RecordThenCompare(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openFileStore(t, dir, ModeRecord)
	m := s.Matcher("block deletion - x")
	require.NoError(t, m.Match("first"))
	require.NoError(t, m.Match("second"))
	assert.Equal(t, 2, m.Count())
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, Summary{Added: 2}, s.Summary())

	s = openFileStore(t, dir, ModeRecord)
	m = s.Matcher("block deletion - x")
	require.NoError(t, m.Match("first"))
	err := m.Match("changed")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Mismatch))

	var mm *MismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, "block deletion - x 2", mm.Key)
	assert.Equal(t, "second", mm.Expected)
	assert.Contains(t, mm.Diff, "-second")
	assert.Contains(t, mm.Diff, "+changed")

	sum := s.Summary()
	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 1, sum.Failed)
}

func TestStore_UpdateOverwritesMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openFileStore(t, dir, ModeRecord)
	require.NoError(t, s.Match("a 1", "old"))
	require.NoError(t, s.Flush(ctx))

	s = openFileStore(t, dir, ModeUpdate)
	require.NoError(t, s.Match("a 1", "new"))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, s.Summary().Updated)

	s = openFileStore(t, dir, ModeCI)
	require.NoError(t, s.Match("a 1", "new"))
}

func TestStore_CIModeNeverWrites(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openFileStore(t, dir, ModeCI)
	err := s.Match("missing 1", "value")
	require.Error(t, err)
	assert.Equal(t, errs.Mismatch, errs.CodeOf(err))
	require.NoError(t, s.Flush(ctx))

	_, statErr := os.Stat(filepath.Join(dir, suite+".snap.yaml"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestStore_ObsoleteRetainAndPrune(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openFileStore(t, dir, ModeRecord)
	for _, key := range []string{"kept 1", "skipped 1", "skipped 2", "skipped extra 1", "gone 1"} {
		require.NoError(t, s.Match(key, key))
	}
	require.NoError(t, s.Flush(ctx))

	s = openFileStore(t, dir, ModeUpdate)
	require.NoError(t, s.Match("kept 1", "kept 1"))
	s.Retain("skipped")
	assert.Equal(t, []string{"gone 1", "skipped extra 1"}, s.Obsolete())

	assert.Equal(t, []string{"gone 1", "skipped extra 1"}, s.Prune())
	require.NoError(t, s.Flush(ctx))

	s = openFileStore(t, dir, ModeRecord)
	_, ok := s.Lookup("gone 1")
	assert.False(t, ok)
	_, ok = s.Lookup("skipped 2")
	assert.True(t, ok)
}

func TestFlush_PruningEverythingDeletesSuite(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	backend := NewFileBackend(dir)

	s := openFileStore(t, dir, ModeRecord)
	require.NoError(t, s.Match("gone 1", "x"))
	require.NoError(t, s.Match("gone 2", "y"))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 2, s.Recorded("gone"))
	assert.Equal(t, 0, s.Recorded("other"))

	suites, err := backend.Suites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{suite}, suites)

	s = openFileStore(t, dir, ModeUpdate)
	assert.Len(t, s.Prune(), 2)
	require.NoError(t, s.Flush(ctx))

	_, err = os.Stat(filepath.Join(dir, suite+fileExt))
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
	suites, err = backend.Suites(ctx)
	require.NoError(t, err)
	assert.Empty(t, suites)
	assert.NoError(t, backend.Delete(ctx, suite))
}

func TestFileBackend_SuitesOfMissingDir(t *testing.T) {
	suites, err := NewFileBackend(filepath.Join(t.TempDir(), "none")).Suites(context.Background())
	require.NoError(t, err)
	assert.Empty(t, suites)
}

func TestPrune_NoopOutsideUpdateMode(t *testing.T) {
	s := openFileStore(t, t.TempDir(), ModeRecord)
	require.NoError(t, s.Match("a 1", "x"))
	assert.Nil(t, s.Prune())
}

func TestEncode_LiteralBlocks(t *testing.T) {
	t.Parallel()

	data, err := Encode(map[string]string{
		"b 1": "",
		"a 1": "<!-- wp:paragraph -->\n<p>x</p>\n<!-- /wp:paragraph -->",
	})
	require.NoError(t, err)
	want := heredoc.Doc(`
		version: 1
		snapshots:
		  a 1: |-
		    <!-- wp:paragraph -->
		    <p>x</p>
		    <!-- /wp:paragraph -->
		  b 1: ""
	`)
	assert.Equal(t, want, string(data))
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("version: 9\nsnapshots: {}\n"))
	assert.Error(t, err)
}

func TestOpen_EmptyFileIsEmptySuite(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	for _, data := range []string{"", " \n\t\n"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, suite+fileExt), []byte(data), 0o644))

		s, err := Open(ctx, NewFileBackend(dir), suite, ModeRecord)
		require.NoError(t, err, "data=%q", data)
		require.NoError(t, s.Match("block deletion - x 1", "first"))
		assert.Equal(t, Summary{Added: 1}, s.Summary())
	}
}

func testEncodeDecode_PreservesValues(t *rapid.T) {
	values := rapid.MapOf(
		rapid.StringMatching(`[a-z][a-z -]{0,20} [1-9]`),
		rapid.StringMatching(`(<!-- wp:paragraph -->\n<p>[a-zA-Z &;]{0,12}</p>\n<!-- /wp:paragraph -->(\n\n)?){0,3}`),
	).Draw(t, "values")

	data, err := Encode(values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v\n%s", err, data)
	}
	if len(got) != len(values) {
		t.Fatalf("got %d values, want %d", len(got), len(values))
	}
	for k, v := range values {
		if got[k] != v {
			t.Fatalf("value for %q changed:\n got %q\nwant %q", k, got[k], v)
		}
	}
}

func TestEncodeDecode_PreservesValues(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testEncodeDecode_PreservesValues)
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRecord, m)
	m, err = ParseMode("UPDATE")
	require.NoError(t, err)
	assert.Equal(t, ModeUpdate, m)
	_, err = ParseMode("rewrite")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestS3Backend_RoundTrip(t *testing.T) {
	client := s3client.TestClient(t, "goldens")
	backend := NewS3Backend(client, "/ci/snapshots/")
	ctx := context.Background()

	s, err := Open(ctx, backend, suite, ModeRecord)
	require.NoError(t, err)
	require.NoError(t, s.Match("deleting all blocks - x 1", ""))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, "s3://goldens/ci/snapshots/block-deletion.snap.yaml", s.Location())

	s, err = Open(ctx, backend, suite, ModeCI)
	require.NoError(t, err)
	require.NoError(t, s.Match("deleting all blocks - x 1", ""))

	suites, err := backend.Suites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{suite}, suites)

	require.NoError(t, backend.Delete(ctx, suite))
	s, err = Open(ctx, backend, suite, ModeCI)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Recorded("deleting all blocks - x"))
}

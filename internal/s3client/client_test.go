package s3client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PutGetDelete(t *testing.T) {
	c := TestClient(t, "snapshots")
	ctx := context.Background()

	_, err := c.GetObject(ctx, "suite/missing.snap.yaml")
	require.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)

	require.NoError(t, c.PutObject(ctx, "suite/a.snap.yaml", []byte("version: 1\n"), "application/yaml"))
	got, err := c.GetObject(ctx, "suite/a.snap.yaml")
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(got))

	require.NoError(t, c.DeleteObject(ctx, "suite/a.snap.yaml"))
	_, err = c.GetObject(ctx, "suite/a.snap.yaml")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestClient_ListKeys(t *testing.T) {
	c := TestClient(t, "snapshots")
	ctx := context.Background()

	for _, key := range []string{"p/one.snap.yaml", "p/two.snap.yaml", "other/x"} {
		require.NoError(t, c.PutObject(ctx, key, []byte("x"), "text/plain"))
	}
	keys, err := c.ListKeys(ctx, "p/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p/one.snap.yaml", "p/two.snap.yaml"}, keys)
	assert.Equal(t, "snapshots", c.BucketName())
}

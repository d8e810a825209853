package consulkv

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// integration tests run against a live Consul agent, set CONSUL_HTTP_ADDR to
// enable them, e.g. CONSUL_HTTP_ADDR=http://localhost:8500 go test ./...

func integrationClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("CONSUL_HTTP_ADDR")
	if addr == "" {
		t.Skip("CONSUL_HTTP_ADDR not set, skipping integration test")
	}

	prefix := "consulkv-test/" + uuid.NewString()
	c, err := New(addr, WithPrefix(prefix), WithToken(os.Getenv("CONSUL_HTTP_TOKEN")))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, c.DeleteTree(context.Background(), ""))
		c.Close()
	})
	return c
}

func TestIntegration_RoundTrip(t *testing.T) {
	c := integrationClient(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	require.NoError(t, c.Set(ctx, "a/b", "1"))
	require.NoError(t, c.Set(ctx, "a/c", "2"))
	require.NoError(t, c.Set(ctx, "d", "3"))

	val, err := c.Get(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	_, err = c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	tree, err := c.GetTree(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Tree{"a": Tree{"b": "1", "c": "2"}, "d": "3"}, tree)

	require.NoError(t, c.Delete(ctx, "d"))
	_, err = c.Get(ctx, "d")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIntegration_CAS(t *testing.T) {
	c := integrationClient(t)
	ctx := context.Background()

	ok, err := c.SetCAS(ctx, "cas", "first", 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.SetCAS(ctx, "cas", "again", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := c.GetRecord(ctx, "cas")
	require.NoError(t, err)
	assert.Positive(t, rec.ModifyIndex)

	ok, err = c.SetCAS(ctx, "cas", "second", rec.ModifyIndex)
	require.NoError(t, err)
	assert.True(t, ok)

	val, err := c.Get(ctx, "cas")
	require.NoError(t, err)
	assert.Equal(t, "second", val)
}

func TestIntegration_Keys(t *testing.T) {
	c := integrationClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "x/1", "a"))
	require.NoError(t, c.Set(ctx, "x/2", "b"))

	keys, err := c.Keys(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

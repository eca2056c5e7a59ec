package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "dims", []byte(`{"length":"5m"}`), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))

	value, ok, err := m.Get(ctx, "dims")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"length":"5m"}`, string(value))

	now = now.Add(2 * time.Minute)
	_, ok, err = m.Get(ctx, "dims")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, m.Len())

	_, ok, _ = m.Get(ctx, "forever")
	require.True(t, ok)
}

func TestMemorySetSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, m.Set(ctx, "forever", []byte("3"), 0))
	require.Equal(t, 3, m.Len())

	now = now.Add(2 * time.Minute)
	require.NoError(t, m.Set(ctx, "c", []byte("4"), time.Minute))
	require.Equal(t, 3, m.Len())

	_, ok, _ := m.Get(ctx, "b")
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	require.NoError(t, m.Set(ctx, "d", []byte("5"), time.Minute))
	require.Equal(t, 2, m.Len())
	_, ok, _ = m.Get(ctx, "forever")
	require.True(t, ok)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	input := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", input, time.Minute))
	input[0] = 'z'

	value, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	value[1] = 'z'

	again, _, _ := m.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}

func TestRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, "redis://"+srv.Addr(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, ok, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Set(ctx, "dims", []byte("payload"), time.Minute))
	require.True(t, srv.Exists("test:dims"))

	value, ok, err := r.Get(ctx, "dims")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "payload", string(value))

	srv.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "dims")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url", "")
	require.Error(t, err)
}

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, Options{TTL: time.Second})
}

func TestObtainIsExclusive(t *testing.T) {
	ctx := context.Background()
	locker := newTestLocker(t)

	first, err := locker.Obtain(ctx, "procurement:order:7:lock")
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "procurement:order:7:lock")
	require.ErrorIs(t, err, ErrNotObtained)

	require.NoError(t, first.Release(ctx))

	again, err := locker.Obtain(ctx, "procurement:order:7:lock")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestNilLockerIsNoop(t *testing.T) {
	var locker *Locker
	handle, err := locker.Obtain(context.Background(), "anything")
	require.NoError(t, err)
	require.NoError(t, handle.Release(context.Background()))
}

package suppliers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	suppliers map[int64]Supplier
	calls     int
}

func (s *countingSource) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s.calls++
	sup, ok := s.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return sup, nil
}

func TestDirectoryCachesLookups(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := &countingSource{suppliers: map[int64]Supplier{3: {ID: 3, Code: "SUP-3", Name: "Green Farm", IsActive: true}}}
	dir := NewDirectory(src, client, time.Minute, nil)
	ctx := context.Background()

	first, err := dir.Get(ctx, 3)
	require.NoError(t, err)
	second, err := dir.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)
	assert.True(t, mr.Exists("suppliers:3"))

	require.NoError(t, dir.Invalidate(ctx, 3))
	_, err = dir.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestDirectoryMissingSupplier(t *testing.T) {
	src := &countingSource{suppliers: map[int64]Supplier{}}
	dir := NewDirectory(src, nil, 0, nil)
	_, err := dir.Get(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)
}

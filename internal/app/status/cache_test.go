package status

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aircast/internal/infra/shoutcast"
)

type fakeFetcher struct {
	snapshots []*shoutcast.Snapshot
	errs      []error
	calls     int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*shoutcast.Snapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.snapshots) {
		return f.snapshots[i], nil
	}
	return f.snapshots[len(f.snapshots)-1], nil
}

func TestCache_ServesCachedWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []*shoutcast.Snapshot{
		{SongTitle: "first"},
		{SongTitle: "second"},
	}}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := New(fetcher, 5*time.Second)
	cache.clock = func() time.Time { return now }

	res, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", res.Snapshot.SongTitle)
	assert.False(t, res.Cached)

	now = now.Add(2 * time.Second)
	res, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", res.Snapshot.SongTitle)
	assert.True(t, res.Cached)
	assert.False(t, res.Stale)
	assert.Equal(t, 1, fetcher.calls)
}

func TestCache_RefreshesPastTTL(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []*shoutcast.Snapshot{
		{SongTitle: "first"},
		{SongTitle: "second"},
	}}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := New(fetcher, 5*time.Second)
	cache.clock = func() time.Time { return now }

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	now = now.Add(6 * time.Second)
	res, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", res.Snapshot.SongTitle)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCache_ServesStaleOnRefreshFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		snapshots: []*shoutcast.Snapshot{{SongTitle: "first"}},
		errs:      []error{nil, errors.New("connection refused")},
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := New(fetcher, 5*time.Second)
	cache.clock = func() time.Time { return now }

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	now = now.Add(10 * time.Second)
	res, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", res.Snapshot.SongTitle)
	assert.True(t, res.Cached)
	assert.True(t, res.Stale)
}

func TestCache_ErrorsWithEmptyCache(t *testing.T) {
	fetcher := &fakeFetcher{
		snapshots: []*shoutcast.Snapshot{{SongTitle: "never reached"}},
		errs:      []error{errors.New("connection refused")},
	}

	cache := New(fetcher, 5*time.Second)
	_, err := cache.Get(context.Background())
	assert.Error(t, err)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpailes/Avy-weather-server/internal/forecast"
)

// scrapeFunc adapts a function to the Scraper interface.
type scrapeFunc func(ctx context.Context, zone forecast.ZoneID) (*forecast.Record, error)

func (f scrapeFunc) Fetch(ctx context.Context, zone forecast.ZoneID) (*forecast.Record, error) {
	return f(ctx, zone)
}

// fakeClock is a manually advanced wall clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 12, 6, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func makeRecord(zone forecast.ZoneID, level forecast.DangerLevel) *forecast.Record {
	return &forecast.Record{
		Zone: zone,
		Ratings: map[forecast.ElevationBand]forecast.DangerLevel{
			forecast.AboveTreeline: level,
			forecast.NearTreeline:  level,
			forecast.BelowTreeline: level,
		},
		Summary:   "Watch for wind slabs near ridgelines.",
		FetchedAt: time.Date(2026, 1, 12, 6, 0, 0, 0, time.UTC),
	}
}

func TestGetServesFreshWithoutRescrape(t *testing.T) {
	const zone = forecast.ZoneID("stevens-pass")

	var calls int64
	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		atomic.AddInt64(&calls, 1)
		return makeRecord(z, forecast.DangerModerate), nil
	})

	c := New(scraper, []forecast.ZoneID{zone}, 6*time.Hour)

	first, freshness, err := c.Get(context.Background(), zone)
	require.NoError(t, err)
	require.Equal(t, Fresh, freshness)

	second, freshness, err := c.Get(context.Background(), zone)
	require.NoError(t, err)
	require.Equal(t, Fresh, freshness)

	assert.Same(t, first, second, "a fresh entry must be served without a re-scrape")
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestConcurrentStaleGetsCollapseToOneScrape(t *testing.T) {
	const (
		zone = forecast.ZoneID("snoqualmie-pass")
		n    = 25
	)

	var calls int64
	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(50 * time.Millisecond) // keep the flight open while callers pile up
		return makeRecord(z, forecast.DangerConsiderable), nil
	})

	c := New(scraper, []forecast.ZoneID{zone}, 6*time.Hour)

	start := make(chan struct{})
	var wg sync.WaitGroup
	records := make([]*forecast.Record, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			rec, freshness, err := c.Get(context.Background(), zone)
			assert.NoError(t, err)
			assert.Equal(t, Fresh, freshness)
			records[i] = rec
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "concurrent stale callers must share one scrape")
	for i := 1; i < n; i++ {
		assert.Same(t, records[0], records[i], "every waiter must observe the same flight's record")
	}
}

func TestFailedRefreshPreservesPriorRecord(t *testing.T) {
	const zone = forecast.ZoneID("stevens-pass")

	clock := newFakeClock()
	var fail atomic.Bool
	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		if fail.Load() {
			return nil, forecast.ErrRenderUnavailable
		}
		return makeRecord(z, forecast.DangerModerate), nil
	})

	c := New(scraper, []forecast.ZoneID{zone}, 6*time.Hour, WithClock(clock.Now))

	prior, freshness, err := c.Get(context.Background(), zone)
	require.NoError(t, err)
	require.Equal(t, Fresh, freshness)

	fail.Store(true)
	clock.Advance(7 * time.Hour)

	rec, freshness, err := c.Get(context.Background(), zone)
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrRenderUnavailable)
	assert.Equal(t, StaleServed, freshness)
	assert.Same(t, prior, rec, "a failed refresh must serve the prior record, not clear it")
}

func TestFailureWithNoPriorData(t *testing.T) {
	const zone = forecast.ZoneID("east-slopes-central")

	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		return nil, forecast.ErrRenderUnavailable
	})

	c := New(scraper, []forecast.ZoneID{zone}, 6*time.Hour)

	rec, freshness, err := c.Get(context.Background(), zone)
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, StaleNoData, freshness)
}

func TestUnknownZoneRejectedBeforeScrape(t *testing.T) {
	var calls int64
	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		atomic.AddInt64(&calls, 1)
		return makeRecord(z, forecast.DangerLow), nil
	})

	c := New(scraper, []forecast.ZoneID{"stevens-pass"}, 6*time.Hour)

	rec, freshness, err := c.Get(context.Background(), "unknown-zone")
	assert.ErrorIs(t, err, forecast.ErrUnknownZone)
	assert.Nil(t, rec)
	assert.Equal(t, StaleNoData, freshness)
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls), "unknown zones must never reach the scraper")
}

func TestCrossZoneIndependence(t *testing.T) {
	const (
		zoneA = forecast.ZoneID("stevens-pass")
		zoneB = forecast.ZoneID("snoqualmie-pass")
	)

	release := make(chan struct{})
	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		if z == zoneA {
			<-release
			return nil, forecast.ErrRenderUnavailable
		}
		return makeRecord(z, forecast.DangerLow), nil
	})

	c := New(scraper, []forecast.ZoneID{zoneA, zoneB}, 6*time.Hour)

	aDone := make(chan struct{})
	go func() {
		defer close(aDone)
		_, _, _ = c.Get(context.Background(), zoneA)
	}()

	// While zone A's scrape is parked, zone B must still complete.
	bDone := make(chan struct{})
	go func() {
		defer close(bDone)
		rec, freshness, err := c.Get(context.Background(), zoneB)
		assert.NoError(t, err)
		assert.Equal(t, Fresh, freshness)
		assert.NotNil(t, rec)
	}()

	select {
	case <-bDone:
	case <-time.After(2 * time.Second):
		t.Fatal("zone B blocked behind zone A's in-flight scrape")
	}

	close(release)
	<-aDone
}

// Walks the 6-hour TTL end to end: success at t=0 with Moderate, fresh hit
// at t=3h, refresh at t=7h succeeding with Considerable.
func TestCacheDurationWalkthroughRefreshSucceeds(t *testing.T) {
	const zone = forecast.ZoneID("stevens-pass")

	clock := newFakeClock()
	var calls int64
	level := forecast.DangerModerate
	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		atomic.AddInt64(&calls, 1)
		return makeRecord(z, level), nil
	})

	c := New(scraper, []forecast.ZoneID{zone}, 6*time.Hour, WithClock(clock.Now))

	rec, freshness, err := c.Get(context.Background(), zone)
	require.NoError(t, err)
	require.Equal(t, Fresh, freshness)
	require.Equal(t, forecast.DangerModerate, rec.Ratings[forecast.AboveTreeline])

	clock.Advance(3 * time.Hour)
	rec, freshness, err = c.Get(context.Background(), zone)
	require.NoError(t, err)
	assert.Equal(t, Fresh, freshness)
	assert.Equal(t, forecast.DangerModerate, rec.Ratings[forecast.AboveTreeline])
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "a 3h-old entry is within the 6h TTL")

	level = forecast.DangerConsiderable
	clock.Advance(4 * time.Hour)
	rec, freshness, err = c.Get(context.Background(), zone)
	require.NoError(t, err)
	assert.Equal(t, Fresh, freshness)
	assert.Equal(t, forecast.DangerConsiderable, rec.Ratings[forecast.AboveTreeline])
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls), "a 7h-old entry must trigger a refresh")
}

func TestCacheDurationWalkthroughRefreshFails(t *testing.T) {
	const zone = forecast.ZoneID("stevens-pass")

	clock := newFakeClock()
	var fail atomic.Bool
	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		if fail.Load() {
			return nil, forecast.ErrRenderUnavailable
		}
		return makeRecord(z, forecast.DangerModerate), nil
	})

	c := New(scraper, []forecast.ZoneID{zone}, 6*time.Hour, WithClock(clock.Now))

	_, _, err := c.Get(context.Background(), zone)
	require.NoError(t, err)

	fail.Store(true)
	clock.Advance(7 * time.Hour)

	rec, freshness, err := c.Get(context.Background(), zone)
	require.Error(t, err)
	assert.Equal(t, StaleServed, freshness)
	require.NotNil(t, rec)
	assert.Equal(t, forecast.DangerModerate, rec.Ratings[forecast.AboveTreeline])
}

func TestGetAllKeepsZoneFailuresIndependent(t *testing.T) {
	const (
		good = forecast.ZoneID("snoqualmie-pass")
		bad  = forecast.ZoneID("east-slopes-central")
	)

	scraper := scrapeFunc(func(ctx context.Context, z forecast.ZoneID) (*forecast.Record, error) {
		if z == bad {
			return nil, forecast.ErrRenderUnavailable
		}
		return makeRecord(z, forecast.DangerHigh), nil
	})

	c := New(scraper, []forecast.ZoneID{good, bad}, 6*time.Hour)

	results := c.GetAll(context.Background())
	require.Len(t, results, 2)

	require.NoError(t, results[good].Err)
	assert.Equal(t, Fresh, results[good].Freshness)
	assert.NotNil(t, results[good].Record)

	require.Error(t, results[bad].Err)
	assert.True(t, errors.Is(results[bad].Err, forecast.ErrRenderUnavailable))
	assert.Equal(t, StaleNoData, results[bad].Freshness)
	assert.Nil(t, results[bad].Record)
}

func TestZonesStableOrder(t *testing.T) {
	c := New(nil, []forecast.ZoneID{"snoqualmie-pass", "east-slopes-central", "stevens-pass"}, time.Hour)

	assert.Equal(t,
		[]forecast.ZoneID{"east-slopes-central", "snoqualmie-pass", "stevens-pass"},
		c.Zones())
}

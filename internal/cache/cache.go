// Package cache holds the per-zone forecast cache with stampede-safe refresh.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fpailes/Avy-weather-server/internal/forecast"
)

// Freshness classifies the record returned by Get.
type Freshness int

const (
	// Fresh: the record is within the cache TTL (possibly because this very
	// call refreshed it).
	Fresh Freshness = iota
	// StaleServed: the refresh failed but a prior record exists and is served.
	StaleServed
	// StaleNoData: the refresh failed and no prior record exists.
	StaleNoData
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case StaleServed:
		return "stale-served"
	case StaleNoData:
		return "stale-no-data"
	default:
		return "unknown"
	}
}

// Scraper is the contract the cache refreshes through.
type Scraper interface {
	Fetch(ctx context.Context, zone forecast.ZoneID) (*forecast.Record, error)
}

// entry is the per-zone cache state. Entries are created eagerly at
// construction, one per known zone, and updated in place for the process
// lifetime. A failed refresh records lastErr but never clears record.
type entry struct {
	record      *forecast.Record
	lastSuccess time.Time
	lastErr     error
}

// ZoneForecastCache owns one cache entry per known zone. On Get it serves the
// stored record while fresh and otherwise refreshes through the Scraper,
// collapsing concurrent refreshes for the same zone into a single scrape.
// Zones refresh independently; one zone's failure never blocks another.
type ZoneForecastCache struct {
	scraper Scraper
	ttl     time.Duration

	// now is swapped out by tests; freshness must stay a pure function of it.
	now func() time.Time

	flight singleflight.Group

	mu      sync.RWMutex
	entries map[forecast.ZoneID]*entry
}

// Option customizes a ZoneForecastCache.
type Option func(*ZoneForecastCache)

// WithClock overrides the wall clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(c *ZoneForecastCache) {
		c.now = now
	}
}

// New creates a cache for the given zone set with a uniform TTL.
func New(scraper Scraper, zones []forecast.ZoneID, ttl time.Duration, opts ...Option) *ZoneForecastCache {
	c := &ZoneForecastCache{
		scraper: scraper,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[forecast.ZoneID]*entry, len(zones)),
	}
	for _, zone := range zones {
		c.entries[zone] = &entry{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Zones returns the known zone set in stable order.
func (c *ZoneForecastCache) Zones() []forecast.ZoneID {
	zones := make([]forecast.ZoneID, 0, len(c.entries))
	for zone := range c.entries {
		zones = append(zones, zone)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })
	return zones
}

// TTL returns the uniform cache duration.
func (c *ZoneForecastCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the forecast for a zone. A fresh entry is returned as-is. A
// stale or absent entry triggers a coordinated refresh: concurrent callers
// observing the same zone as stale wait on one underlying scrape and all see
// its outcome. On refresh failure the prior record (if any) is served tagged
// StaleServed together with the failure; with no prior record the result is
// StaleNoData.
func (c *ZoneForecastCache) Get(ctx context.Context, zone forecast.ZoneID) (*forecast.Record, Freshness, error) {
	c.mu.RLock()
	e, known := c.entries[zone]
	c.mu.RUnlock()
	if !known {
		return nil, StaleNoData, fmt.Errorf("%w: %s", forecast.ErrUnknownZone, zone)
	}

	if rec, ok := c.freshRecord(e); ok {
		return rec, Fresh, nil
	}

	_, err, _ := c.flight.Do(string(zone), func() (interface{}, error) {
		// A caller that raced a refresh completing just before this flight
		// started must not trigger a second scrape.
		if _, ok := c.freshRecord(e); ok {
			return nil, nil
		}

		rec, err := c.scraper.Fetch(ctx, zone)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			e.lastErr = err
			return nil, err
		}
		e.record = rec
		e.lastSuccess = c.now()
		e.lastErr = nil
		return nil, nil
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	if err != nil {
		if e.record != nil {
			return e.record, StaleServed, err
		}
		return nil, StaleNoData, err
	}
	return e.record, Fresh, nil
}

// Result bundles the Get triple for GetAll.
type Result struct {
	Record    *forecast.Record
	Freshness Freshness
	Err       error
}

// GetAll runs Get for every known zone concurrently. Zones are independent:
// a slow or failing scrape for one zone appears only in that zone's Result.
func (c *ZoneForecastCache) GetAll(ctx context.Context) map[forecast.ZoneID]Result {
	results := make(map[forecast.ZoneID]Result, len(c.entries))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, zone := range c.Zones() {
		wg.Add(1)
		go func(zone forecast.ZoneID) {
			defer wg.Done()

			rec, freshness, err := c.Get(ctx, zone)

			mu.Lock()
			results[zone] = Result{Record: rec, Freshness: freshness, Err: err}
			mu.Unlock()
		}(zone)
	}
	wg.Wait()

	return results
}

// freshRecord returns the entry's record when it is within the TTL. Reading
// freshness never mutates the entry.
func (c *ZoneForecastCache) freshRecord(e *entry) (*forecast.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e.record == nil {
		return nil, false
	}
	if c.now().Sub(e.lastSuccess) < c.ttl {
		return e.record, true
	}
	return nil, false
}

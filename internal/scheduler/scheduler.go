package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/fpailes/Avy-weather-server/internal/cache"
)

// refreshTimeout bounds one background refresh pass across all zones.
const refreshTimeout = 2 * time.Minute

// Scheduler periodically re-warms the forecast cache so inbound requests
// rarely pay for a scrape. It only calls into the cache, so the
// one-scrape-per-zone guarantee is unaffected.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cache     *cache.ZoneForecastCache
	interval  time.Duration
}

// New creates a Scheduler refreshing every interval. An interval of 0
// disables the periodic job.
func New(c *cache.ZoneForecastCache, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cache:     c,
		interval:  interval,
	}
}

// Start schedules the periodic refresh and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: background refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		log.Println("scheduler: running forecast refresh job")

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		for zone, res := range s.cache.GetAll(ctx) {
			if res.Err != nil {
				log.Printf("scheduler: refresh failed for %s: %v", zone, res.Err)
			}
		}
		log.Println("scheduler: completed forecast refresh job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

package collector

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/apexf1/pitwall/internal/openf1"
	"github.com/apexf1/pitwall/pkg/logger"
)

// collectLaps fans out per-driver lap fetches with at most
// cfg.Concurrency requests in flight. A driver whose task fails all
// attempts contributes nothing; the batch never aborts.
func (s *Service) collectLaps(ctx context.Context, sessionKey int, drivers []openf1.Driver) []openf1.Lap {
	var (
		mu  sync.Mutex
		all []openf1.Lap
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, driver := range drivers {
		g.Go(func() error {
			laps := s.driverLaps(gctx, sessionKey, driver)
			mu.Lock()
			all = append(all, laps...)
			mu.Unlock()
			return nil
		})
	}

	// Tasks swallow their own errors, so Wait cannot fail
	_ = g.Wait()

	return all
}

// driverLaps fetches one driver's laps with entity-level retries on top
// of the client's own HTTP retry loop. Laps without a start timestamp are
// discarded and the rest returned in chronological order.
func (s *Service) driverLaps(ctx context.Context, sessionKey int, driver openf1.Driver) []openf1.Lap {
	log := s.logger.With(
		logger.String("driver", driver.NameAcronym),
		logger.Int("driver_number", driver.DriverNumber))

	delay := s.cfg.EntityRetryDelay()
	for attempt := 0; attempt < s.cfg.EntityRetries; attempt++ {
		// Pace even a freshly freed slot so back-to-back completions don't burst
		if err := sleep(ctx, s.cfg.PaceDelay()); err != nil {
			return nil
		}

		laps, err := s.client.Laps(ctx, sessionKey, driver.DriverNumber)
		if err == nil {
			laps = lo.Filter(laps, func(lap openf1.Lap, _ int) bool {
				return !lap.DateStart.IsZero()
			})
			slices.SortFunc(laps, func(a, b openf1.Lap) int {
				return a.DateStart.Compare(b.DateStart.Time)
			})
			if len(laps) == 0 {
				// Normal for reserve drivers
				log.Debug("No laps for driver")
				return nil
			}
			log.Debug("Fetched laps", logger.Int("count", len(laps)))
			return laps
		}

		log.Warn("Failed to fetch laps",
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", s.cfg.EntityRetries))

		if attempt < s.cfg.EntityRetries-1 {
			if err := sleep(ctx, delay); err != nil {
				return nil
			}
			delay *= 2
		}
	}

	log.Warn("Giving up on driver after repeated failures")
	return nil
}

// sleep waits for d unless the context is cancelled first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

package collector

import (
	"context"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/apexf1/pitwall/internal/openf1"
	"github.com/apexf1/pitwall/internal/storage/sqlite"
	"github.com/apexf1/pitwall/pkg/logger"
)

// driverLocations fetches the full position series of one driver across
// fixed-size time windows and reassembles it. The span runs from the
// first lap's start to the last lap's computed end. Windows are fetched
// sequentially with a pacing delay; concurrency exists only across
// drivers, never within one driver's windows.
func (s *Service) driverLocations(ctx context.Context, sessionKey, driverNumber int, laps []openf1.Lap) []openf1.LocationSample {
	if len(laps) == 0 {
		return nil
	}

	start := laps[0].DateStart.Time
	end := laps[len(laps)-1].EndTime()
	if !end.After(start) {
		return nil
	}

	window := s.cfg.LocationWindow()
	var all []openf1.LocationSample

	for windowStart := start; windowStart.Before(end); windowStart = windowStart.Add(window) {
		windowEnd := windowStart.Add(window)
		if windowEnd.After(end) {
			windowEnd = end
		}

		samples, err := s.client.Locations(ctx, sessionKey, driverNumber, windowStart, windowEnd)
		if err != nil {
			// One bad window costs its samples, not the whole series
			s.logger.Warn("Failed to fetch location window",
				logger.Error(err),
				logger.Int("driver_number", driverNumber),
				logger.Time("window_start", windowStart))
			continue
		}
		all = append(all, samples...)

		if err := sleep(ctx, s.cfg.WindowPace()); err != nil {
			break
		}
	}

	// Malformed timestamps decoded to the zero sentinel carry no position info
	all = lo.Filter(all, func(sample openf1.LocationSample, _ int) bool {
		return !sample.Date.IsZero()
	})

	// Adjacent windows share a boundary, which duplicates samples; keep the first
	all = lo.UniqBy(all, func(sample openf1.LocationSample) int64 {
		return sample.Date.UnixNano()
	})

	slices.SortStableFunc(all, func(a, b openf1.LocationSample) int {
		return a.Date.Compare(b.Date.Time)
	})
	return all
}

// assignToLaps annotates samples with their containing lap using
// half-open [start, start+duration) membership. Both inputs must be in
// chronological order. Samples outside every lap window are dropped.
func assignToLaps(sessionKey int, driver openf1.Driver, laps []openf1.Lap, samples []openf1.LocationSample) []sqlite.TelemetryRow {
	rows := make([]sqlite.TelemetryRow, 0, len(samples))

	lapIdx := 0
	lapEnd := func(lap openf1.Lap) time.Time { return lap.EndTime() }

	for _, sample := range samples {
		t := sample.Date.Time

		for lapIdx < len(laps) && !t.Before(lapEnd(laps[lapIdx])) {
			lapIdx++
		}
		if lapIdx >= len(laps) {
			// At or past the last lap's computed end: unassigned
			break
		}
		lap := laps[lapIdx]
		if t.Before(lap.DateStart.Time) {
			// Falls in a gap between lap windows
			continue
		}

		rows = append(rows, sqlite.TelemetryRow{
			SessionKey:    sessionKey,
			DriverAcronym: driver.NameAcronym,
			DriverNumber:  driver.DriverNumber,
			LapNumber:     lap.LapNumber,
			LapDuration:   lap.Duration(),
			Timestamp:     t,
			X:             sample.X,
			Y:             sample.Y,
			Z:             sample.Z,
		})
	}

	return rows
}

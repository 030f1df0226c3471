package replay

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/apexf1/pitwall/internal/openf1"
	"github.com/apexf1/pitwall/internal/storage/sqlite"
	"github.com/apexf1/pitwall/pkg/logger"
)

// Frame is one driver's state at one tick of the master timeline
type Frame struct {
	RaceTime      int     `json:"race_time"`
	DriverNumber  int     `json:"driver_number"`
	DriverAcronym string  `json:"driver_acronym"`
	TeamColour    string  `json:"team_colour"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	LapNumber     int     `json:"lap_number"`
}

// Aligner reconstructs a synchronized multi-driver timeline from
// irregularly sampled per-driver position series
type Aligner struct {
	logger *logger.Logger
}

// NewAligner creates a new replay aligner
func NewAligner(log *logger.Logger) *Aligner {
	return &Aligner{
		logger: log.Named("replay-aligner"),
	}
}

type point struct {
	t    float64 // race time in seconds
	x, y float64
	lap  int
}

// Align resamples every driver's series onto one shared timeline of
// 1-second ticks spanning the session. Positions are linearly
// interpolated at ticks between samples and clamped outside the driver's
// own span; lap numbers are forward- then backward-filled. Every driver
// ends up with the exact same tick set.
func (a *Aligner) Align(rows []sqlite.TelemetryRow, drivers []openf1.Driver) []Frame {
	if len(rows) == 0 {
		return nil
	}

	meta := make(map[int]openf1.Driver, len(drivers))
	for _, driver := range drivers {
		meta[driver.DriverNumber] = driver
	}

	sessionStart := rows[0].Timestamp
	sessionEnd := rows[0].Timestamp
	for _, row := range rows[1:] {
		if row.Timestamp.Before(sessionStart) {
			sessionStart = row.Timestamp
		}
		if row.Timestamp.After(sessionEnd) {
			sessionEnd = row.Timestamp
		}
	}
	ticks := int(math.Ceil(sessionEnd.Sub(sessionStart).Seconds())) + 1

	groups := lo.GroupBy(rows, func(row sqlite.TelemetryRow) int {
		return row.DriverNumber
	})
	numbers := lo.Keys(groups)
	slices.Sort(numbers)

	a.logger.Debug("Aligning replay timeline",
		logger.Int("drivers", len(numbers)),
		logger.Int("ticks", ticks))

	frames := make([]Frame, 0, ticks*len(numbers))
	for _, number := range numbers {
		series := buildSeries(groups[number], sessionStart)
		if len(series) == 0 {
			continue
		}

		acronym := groups[number][0].DriverAcronym
		var colour string
		if driver, ok := meta[number]; ok {
			colour = driver.TeamColour
		}

		idx := 0
		for tick := 0; tick < ticks; tick++ {
			t := float64(tick)
			for idx+1 < len(series) && series[idx+1].t <= t {
				idx++
			}

			var x, y float64
			var lap int
			switch {
			case t <= series[0].t:
				// Before the driver's first sample: backward fill
				x, y, lap = series[0].x, series[0].y, series[0].lap
			case idx == len(series)-1:
				// After the last sample: hold the final position
				last := series[len(series)-1]
				x, y, lap = last.x, last.y, last.lap
			default:
				cur, next := series[idx], series[idx+1]
				if cur.t == t {
					x, y = cur.x, cur.y
				} else {
					frac := (t - cur.t) / (next.t - cur.t)
					x = cur.x + (next.x-cur.x)*frac
					y = cur.y + (next.y-cur.y)*frac
				}
				lap = cur.lap // forward fill
			}

			frames = append(frames, Frame{
				RaceTime:      tick,
				DriverNumber:  number,
				DriverAcronym: acronym,
				TeamColour:    colour,
				X:             x,
				Y:             y,
				LapNumber:     lap,
			})
		}
	}

	return frames
}

// buildSeries converts one driver's rows into a sorted, deduplicated
// race-time series
func buildSeries(rows []sqlite.TelemetryRow, sessionStart time.Time) []point {
	series := make([]point, 0, len(rows))
	for _, row := range rows {
		series = append(series, point{
			t:   row.Timestamp.Sub(sessionStart).Seconds(),
			x:   row.X,
			y:   row.Y,
			lap: row.LapNumber,
		})
	}
	slices.SortStableFunc(series, func(a, b point) int {
		switch {
		case a.t < b.t:
			return -1
		case a.t > b.t:
			return 1
		default:
			return 0
		}
	})
	// Exact-duplicate timestamps keep the first occurrence
	return lo.UniqBy(series, func(p point) float64 { return p.t })
}

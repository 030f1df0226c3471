package collector

import (
	"cmp"
	"slices"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/apexf1/pitwall/internal/openf1"
	"github.com/apexf1/pitwall/internal/storage/sqlite"
)

// tyreInfo resolves the compound and accumulated tyre age for one lap by
// containment in the driver's stint ranges. The first containing stint
// wins; stints for one driver should not overlap, but upstream data is
// not verified.
func tyreInfo(lap openf1.Lap, stints []openf1.Stint) (*string, *int) {
	for _, stint := range stints {
		if stint.DriverNumber != lap.DriverNumber || !stint.Contains(lap.LapNumber) {
			continue
		}
		compound := stint.Compound
		lapsOnTire := (lap.LapNumber - stint.LapStart) + stint.TyreAgeAtStart
		return &compound, &lapsOnTire
	}
	return nil, nil
}

// nearestWeather returns the weather sample closest in time to t, or nil
// when the closest one is farther away than the tolerance. The weather
// slice must be sorted by date ascending.
func nearestWeather(weather []openf1.WeatherSample, t time.Time, tolerance time.Duration) *openf1.WeatherSample {
	if len(weather) == 0 {
		return nil
	}

	idx := sort.Search(len(weather), func(i int) bool {
		return !weather[i].Date.Before(t)
	})

	best := -1
	var bestDiff time.Duration
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(weather) {
			continue
		}
		diff := t.Sub(weather[i].Date.Time)
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}

	if best == -1 || bestDiff > tolerance {
		return nil
	}
	return &weather[best]
}

// segmentsToText serializes a variable-length sector segment list to its
// canonical textual form; the storage layer is tabular only
func segmentsToText(segments []*int) string {
	if segments == nil {
		return ""
	}
	b, err := json.Marshal(segments)
	if err != nil {
		return ""
	}
	return string(b)
}

// buildTrainingRows joins laps with stint-derived tyre info and the
// nearest weather sample into the final training dataset, sorted by
// (driver_number, lap_number) for reproducible diffs
func (s *Service) buildTrainingRows(sessionKey int, laps []openf1.Lap, stints []openf1.Stint, weather []openf1.WeatherSample) []sqlite.TrainingRow {
	tolerance := s.cfg.WeatherTolerance()

	// The as-of-nearest join needs the weather timeline sorted; samples
	// with unparseable dates cannot participate
	samples := lo.Filter(slices.Clone(weather), func(w openf1.WeatherSample, _ int) bool {
		return !w.Date.IsZero()
	})
	slices.SortFunc(samples, func(a, b openf1.WeatherSample) int {
		return a.Date.Compare(b.Date.Time)
	})

	rows := make([]sqlite.TrainingRow, 0, len(laps))
	for _, lap := range laps {
		compound, lapsOnTire := tyreInfo(lap, stints)

		row := sqlite.TrainingRow{
			MeetingKey:      lap.MeetingKey,
			SessionKey:      sessionKey,
			DriverNumber:    lap.DriverNumber,
			LapNumber:       lap.LapNumber,
			DateStart:       lap.DateStart.Time,
			LapDuration:     lap.LapDuration,
			DurationSector1: lap.DurationSector1,
			DurationSector2: lap.DurationSector2,
			DurationSector3: lap.DurationSector3,
			STSpeed:         lap.STSpeed,
			I1Speed:         lap.I1Speed,
			I2Speed:         lap.I2Speed,
			SegmentsSector1: segmentsToText(lap.SegmentsSector1),
			SegmentsSector2: segmentsToText(lap.SegmentsSector2),
			SegmentsSector3: segmentsToText(lap.SegmentsSector3),
			IsPitOutLap:     lap.IsPitOutLap,
			TireCompound:    compound,
			LapsOnTire:      lapsOnTire,
		}

		if w := nearestWeather(samples, lap.DateStart.Time, tolerance); w != nil {
			row.Rainfall = w.Rainfall
			row.TrackTemperature = w.TrackTemperature
			row.AirTemperature = w.AirTemperature
			row.Humidity = w.Humidity
		}

		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b sqlite.TrainingRow) int {
		if c := cmp.Compare(a.DriverNumber, b.DriverNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.LapNumber, b.LapNumber)
	})
	return rows
}

package collector

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexf1/pitwall/internal/config"
	"github.com/apexf1/pitwall/internal/openf1"
	"github.com/apexf1/pitwall/pkg/logger"
)

func testService(cfg config.CollectorConfig) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger.Nop(),
		cache:  make(map[int]*sessionData),
	}
}

func TestTyreInfo(t *testing.T) {
	stints := []openf1.Stint{
		{DriverNumber: 1, LapStart: 1, LapEnd: 4, Compound: "SOFT", TyreAgeAtStart: 0},
		{DriverNumber: 1, LapStart: 5, LapEnd: 20, Compound: "HARD", TyreAgeAtStart: 2},
		{DriverNumber: 16, LapStart: 1, LapEnd: 30, Compound: "MEDIUM", TyreAgeAtStart: 0},
	}

	t.Run("lap inside stint", func(t *testing.T) {
		compound, lapsOnTire := tyreInfo(openf1.Lap{DriverNumber: 1, LapNumber: 10}, stints)
		require.NotNil(t, compound)
		require.NotNil(t, lapsOnTire)
		assert.Equal(t, "HARD", *compound)
		// 5 laps into the stint on a tyre that already had 2
		assert.Equal(t, 7, *lapsOnTire)
	})

	t.Run("stint boundary", func(t *testing.T) {
		compound, lapsOnTire := tyreInfo(openf1.Lap{DriverNumber: 1, LapNumber: 5}, stints)
		require.NotNil(t, compound)
		assert.Equal(t, "HARD", *compound)
		assert.Equal(t, 2, *lapsOnTire)
	})

	t.Run("other driver's stints are ignored", func(t *testing.T) {
		compound, _ := tyreInfo(openf1.Lap{DriverNumber: 16, LapNumber: 10}, stints)
		require.NotNil(t, compound)
		assert.Equal(t, "MEDIUM", *compound)
	})

	t.Run("no containing stint", func(t *testing.T) {
		compound, lapsOnTire := tyreInfo(openf1.Lap{DriverNumber: 1, LapNumber: 25}, stints)
		assert.Nil(t, compound)
		assert.Nil(t, lapsOnTire)
	})

	t.Run("first containing stint wins", func(t *testing.T) {
		overlapping := []openf1.Stint{
			{DriverNumber: 1, LapStart: 1, LapEnd: 10, Compound: "SOFT"},
			{DriverNumber: 1, LapStart: 8, LapEnd: 15, Compound: "HARD"},
		}
		compound, _ := tyreInfo(openf1.Lap{DriverNumber: 1, LapNumber: 9}, overlapping)
		require.NotNil(t, compound)
		assert.Equal(t, "SOFT", *compound)
	})
}

func TestNearestWeather(t *testing.T) {
	t0 := time.Date(2023, 7, 1, 14, 0, 0, 0, time.UTC)
	tolerance := 5 * time.Minute
	weather := []openf1.WeatherSample{
		{Date: openf1.Time{Time: t0}, AirTemperature: lo.ToPtr(25.0)},
		{Date: openf1.Time{Time: t0.Add(10 * time.Minute)}, AirTemperature: lo.ToPtr(26.0)},
	}

	t.Run("nearest within tolerance", func(t *testing.T) {
		w := nearestWeather(weather, t0.Add(4*time.Minute), tolerance)
		require.NotNil(t, w)
		assert.Equal(t, 25.0, *w.AirTemperature)
	})

	t.Run("picks the later neighbour when closer", func(t *testing.T) {
		w := nearestWeather(weather, t0.Add(7*time.Minute), tolerance)
		require.NotNil(t, w)
		assert.Equal(t, 26.0, *w.AirTemperature)
	})

	t.Run("exact match", func(t *testing.T) {
		w := nearestWeather(weather, t0, tolerance)
		require.NotNil(t, w)
		assert.Equal(t, 25.0, *w.AirTemperature)
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		single := weather[:1]
		assert.Nil(t, nearestWeather(single, t0.Add(6*time.Minute), tolerance))
	})

	t.Run("at tolerance boundary", func(t *testing.T) {
		single := weather[:1]
		assert.NotNil(t, nearestWeather(single, t0.Add(tolerance), tolerance))
	})

	t.Run("empty timeline", func(t *testing.T) {
		assert.Nil(t, nearestWeather(nil, t0, tolerance))
	})
}

func TestSegmentsToText(t *testing.T) {
	assert.Equal(t, "", segmentsToText(nil))
	assert.Equal(t, "[]", segmentsToText([]*int{}))
	assert.Equal(t, "[2048,null,2051]", segmentsToText([]*int{lo.ToPtr(2048), nil, lo.ToPtr(2051)}))
}

func TestBuildTrainingRows(t *testing.T) {
	t0 := time.Date(2023, 7, 1, 14, 0, 0, 0, time.UTC)
	lapTime := func(minutes int) openf1.Time {
		return openf1.Time{Time: t0.Add(time.Duration(minutes) * time.Minute)}
	}

	// Two drivers, deliberately out of order to verify the final sort
	laps := []openf1.Lap{
		{DriverNumber: 16, LapNumber: 2, DateStart: lapTime(2), LapDuration: lo.ToPtr(91.0)},
		{DriverNumber: 1, LapNumber: 1, DateStart: lapTime(0), LapDuration: lo.ToPtr(95.0)},
		{DriverNumber: 1, LapNumber: 3, DateStart: lapTime(4), LapDuration: lo.ToPtr(92.0)},
		{DriverNumber: 1, LapNumber: 2, DateStart: lapTime(2), LapDuration: lo.ToPtr(93.0)},
		{DriverNumber: 16, LapNumber: 1, DateStart: lapTime(0), LapDuration: lo.ToPtr(94.0)},
	}
	stints := []openf1.Stint{
		{DriverNumber: 1, LapStart: 1, LapEnd: 10, Compound: "SOFT", TyreAgeAtStart: 0},
		{DriverNumber: 16, LapStart: 2, LapEnd: 10, Compound: "MEDIUM", TyreAgeAtStart: 0},
	}
	weather := []openf1.WeatherSample{
		{Date: openf1.Time{Time: t0.Add(time.Minute)}, AirTemperature: lo.ToPtr(27.5), Rainfall: lo.ToPtr(0.0)},
	}

	s := testService(config.CollectorConfig{WeatherToleranceMinutes: 5})
	rows := s.buildTrainingRows(9222, laps, stints, weather)
	require.Len(t, rows, 5)

	// Ordered by (driver_number, lap_number)
	for i, expected := range []struct{ driver, lap int }{
		{1, 1}, {1, 2}, {1, 3}, {16, 1}, {16, 2},
	} {
		assert.Equal(t, expected.driver, rows[i].DriverNumber, "row %d", i)
		assert.Equal(t, expected.lap, rows[i].LapNumber, "row %d", i)
		assert.Equal(t, 9222, rows[i].SessionKey, "row %d", i)
	}

	// Driver 1 lap 3: two laps into a fresh set
	require.NotNil(t, rows[2].LapsOnTire)
	assert.Equal(t, 2, *rows[2].LapsOnTire)
	assert.Equal(t, "SOFT", *rows[2].TireCompound)

	// Driver 16 lap 1 precedes the recorded stint
	assert.Nil(t, rows[3].TireCompound)
	assert.Nil(t, rows[3].LapsOnTire)

	// Driver 16 lap 2 starts the stint
	require.NotNil(t, rows[4].LapsOnTire)
	assert.Equal(t, 0, *rows[4].LapsOnTire)

	// Every lap start is within tolerance of the single weather sample
	for i, row := range rows {
		require.NotNil(t, row.AirTemperature, "row %d", i)
		assert.Equal(t, 27.5, *row.AirTemperature, "row %d", i)
	}
}

func TestBuildTrainingRowsNoWeatherMatch(t *testing.T) {
	t0 := time.Date(2023, 7, 1, 14, 0, 0, 0, time.UTC)
	laps := []openf1.Lap{
		{DriverNumber: 1, LapNumber: 1, DateStart: openf1.Time{Time: t0}},
	}
	weather := []openf1.WeatherSample{
		{Date: openf1.Time{Time: t0.Add(20 * time.Minute)}, AirTemperature: lo.ToPtr(27.5)},
	}

	s := testService(config.CollectorConfig{WeatherToleranceMinutes: 5})
	rows := s.buildTrainingRows(9222, laps, nil, weather)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].AirTemperature)
	assert.Nil(t, rows[0].Rainfall)
}

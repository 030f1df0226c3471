package sqlite

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexf1/pitwall/pkg/logger"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func trainingRow(sessionKey, driverNumber, lapNumber int) TrainingRow {
	return TrainingRow{
		MeetingKey:   lo.ToPtr(1219),
		SessionKey:   sessionKey,
		DriverNumber: driverNumber,
		LapNumber:    lapNumber,
		DateStart:    time.Date(2023, 7, 1, 14, 0, 0, 0, time.UTC).Add(time.Duration(lapNumber) * time.Minute),
		LapDuration:  lo.ToPtr(95.0),
		TireCompound: lo.ToPtr("SOFT"),
		LapsOnTire:   lo.ToPtr(lapNumber - 1),
	}
}

func TestTrainingSaveRowsAppendDeduplicates(t *testing.T) {
	store := newTestStorage(t)
	training := NewTrainingStorage(store.DB(), logger.Nop())

	rows := []TrainingRow{
		trainingRow(9222, 1, 1),
		trainingRow(9222, 1, 2),
	}

	inserted, err := training.SaveRows(rows, SaveAppend)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// Re-saving the same session must not create duplicates
	inserted, err = training.SaveRows(rows, SaveAppend)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	stored, err := training.RowsForSession(9222)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestTrainingSaveRowsModes(t *testing.T) {
	store := newTestStorage(t)
	training := NewTrainingStorage(store.DB(), logger.Nop())

	_, err := training.SaveRows([]TrainingRow{trainingRow(9222, 1, 1)}, SaveAppend)
	require.NoError(t, err)

	t.Run("fail refuses a populated table", func(t *testing.T) {
		_, err := training.SaveRows([]TrainingRow{trainingRow(9223, 1, 1)}, SaveFail)
		assert.Error(t, err)
	})

	t.Run("replace clears the table first", func(t *testing.T) {
		inserted, err := training.SaveRows([]TrainingRow{trainingRow(9223, 1, 1)}, SaveReplace)
		require.NoError(t, err)
		assert.Equal(t, int64(1), inserted)

		old, err := training.RowsForSession(9222)
		require.NoError(t, err)
		assert.Empty(t, old)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := training.SaveRows([]TrainingRow{trainingRow(9224, 1, 1)}, SaveMode("upsert"))
		assert.Error(t, err)
	})
}

func TestTrainingRowsRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	training := NewTrainingStorage(store.DB(), logger.Nop())

	row := trainingRow(9222, 44, 7)
	row.SegmentsSector1 = "[2048,2049]"
	row.IsPitOutLap = true
	row.AirTemperature = lo.ToPtr(27.5)
	row.Rainfall = nil

	_, err := training.SaveRows([]TrainingRow{row}, SaveAppend)
	require.NoError(t, err)

	stored, err := training.RowsForSession(9222)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	got := stored[0]
	assert.Equal(t, row.SessionKey, got.SessionKey)
	assert.Equal(t, row.DriverNumber, got.DriverNumber)
	assert.Equal(t, row.LapNumber, got.LapNumber)
	assert.True(t, got.DateStart.Equal(row.DateStart))
	assert.Equal(t, "[2048,2049]", got.SegmentsSector1)
	assert.True(t, got.IsPitOutLap)
	require.NotNil(t, got.TireCompound)
	assert.Equal(t, "SOFT", *got.TireCompound)
	require.NotNil(t, got.AirTemperature)
	assert.Equal(t, 27.5, *got.AirTemperature)
	assert.Nil(t, got.Rainfall, "absent values survive the round trip as nil")
}

func TestTrainingRowsForSessionOrdering(t *testing.T) {
	store := newTestStorage(t)
	training := NewTrainingStorage(store.DB(), logger.Nop())

	rows := []TrainingRow{
		trainingRow(9222, 16, 2),
		trainingRow(9222, 1, 2),
		trainingRow(9222, 16, 1),
		trainingRow(9222, 1, 1),
		trainingRow(9999, 1, 1), // different session, must not appear
	}
	_, err := training.SaveRows(rows, SaveAppend)
	require.NoError(t, err)

	stored, err := training.RowsForSession(9222)
	require.NoError(t, err)
	require.Len(t, stored, 4)

	for i, expected := range []struct{ driver, lap int }{
		{1, 1}, {1, 2}, {16, 1}, {16, 2},
	} {
		assert.Equal(t, expected.driver, stored[i].DriverNumber, "row %d", i)
		assert.Equal(t, expected.lap, stored[i].LapNumber, "row %d", i)
	}
}

func TestTrainingHasSession(t *testing.T) {
	store := newTestStorage(t)
	training := NewTrainingStorage(store.DB(), logger.Nop())

	has, err := training.HasSession(9222)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = training.SaveRows([]TrainingRow{trainingRow(9222, 1, 1)}, SaveAppend)
	require.NoError(t, err)

	has, err = training.HasSession(9222)
	require.NoError(t, err)
	assert.True(t, has)
}

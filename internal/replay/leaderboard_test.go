package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexf1/pitwall/pkg/logger"
)

// driverFrames produces one frame per tick with the lap sequence given in
// laps, starting at tick 0
func driverFrames(driverNumber int, acronym string, laps []int) []Frame {
	frames := make([]Frame, 0, len(laps))
	for tick, lap := range laps {
		frames = append(frames, Frame{
			RaceTime:      tick,
			DriverNumber:  driverNumber,
			DriverAcronym: acronym,
			LapNumber:     lap,
		})
	}
	return frames
}

func TestLeaderboardOrdering(t *testing.T) {
	var frames []Frame
	frames = append(frames, driverFrames(23, "ALB", []int{1, 2, 2, 2, 2, 3, 3})...)
	frames = append(frames, driverFrames(77, "BOT", []int{1, 2, 2, 2, 3, 3, 3})...)
	frames = append(frames, driverFrames(55, "SAI", []int{1, 1, 2, 2, 2, 2, 2})...)

	aligner := NewAligner(logger.Nop())
	standings := aligner.Leaderboard(frames, 6)
	require.Len(t, standings, 3)

	// Both leaders are on lap 3; BOT started it a tick earlier
	assert.Equal(t, "BOT", standings[0].DriverAcronym)
	assert.Equal(t, 1, standings[0].Position)
	assert.Equal(t, "ALB", standings[1].DriverAcronym)
	assert.Equal(t, 2, standings[1].Position)
	assert.Equal(t, "SAI", standings[2].DriverAcronym)
	assert.Equal(t, 3, standings[2].Position)
	assert.Equal(t, 2, standings[2].LapNumber)
}

func TestLeaderboardAcronymTieBreak(t *testing.T) {
	var frames []Frame
	// Identical lap progression: only the acronym separates them
	frames = append(frames, driverFrames(4, "NOR", []int{1, 2, 2})...)
	frames = append(frames, driverFrames(14, "ALO", []int{1, 2, 2})...)

	standings := NewAligner(logger.Nop()).Leaderboard(frames, 2)
	require.Len(t, standings, 2)
	assert.Equal(t, "ALO", standings[0].DriverAcronym)
	assert.Equal(t, "NOR", standings[1].DriverAcronym)
}

func TestLeaderboardNoFramesAtTick(t *testing.T) {
	frames := driverFrames(1, "VER", []int{1, 1})
	standings := NewAligner(logger.Nop()).Leaderboard(frames, 99)
	assert.Empty(t, standings)
}

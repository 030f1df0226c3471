package replay

import (
	"cmp"
	"slices"
)

// Standing is one leaderboard entry at a given timeline tick
type Standing struct {
	Position      int    `json:"position"`
	DriverNumber  int    `json:"driver_number"`
	DriverAcronym string `json:"driver_acronym"`
	TeamColour    string `json:"team_colour"`
	LapNumber     int    `json:"lap_number"`
}

// Leaderboard ranks drivers at one tick of an aligned timeline: more
// laps completed wins; among equal laps the driver who started that lap
// earliest is ahead; the acronym breaks any remaining tie so the order
// is deterministic.
func (a *Aligner) Leaderboard(frames []Frame, tick int) []Standing {
	type state struct {
		frame    Frame
		lapStart int
	}

	// First tick at which each (driver, lap) appears; frames per driver
	// are tick-ascending by construction
	lapStarts := make(map[int]map[int]int)
	current := make(map[int]*state)

	for _, frame := range frames {
		starts, ok := lapStarts[frame.DriverNumber]
		if !ok {
			starts = make(map[int]int)
			lapStarts[frame.DriverNumber] = starts
		}
		if _, seen := starts[frame.LapNumber]; !seen {
			starts[frame.LapNumber] = frame.RaceTime
		}
		if frame.RaceTime == tick {
			current[frame.DriverNumber] = &state{frame: frame}
		}
	}

	standings := make([]Standing, 0, len(current))
	ordered := make([]*state, 0, len(current))
	for number, st := range current {
		st.lapStart = lapStarts[number][st.frame.LapNumber]
		ordered = append(ordered, st)
	}

	slices.SortFunc(ordered, func(a, b *state) int {
		if c := cmp.Compare(b.frame.LapNumber, a.frame.LapNumber); c != 0 {
			return c
		}
		if c := cmp.Compare(a.lapStart, b.lapStart); c != 0 {
			return c
		}
		return cmp.Compare(a.frame.DriverAcronym, b.frame.DriverAcronym)
	})

	for i, st := range ordered {
		standings = append(standings, Standing{
			Position:      i + 1,
			DriverNumber:  st.frame.DriverNumber,
			DriverAcronym: st.frame.DriverAcronym,
			TeamColour:    st.frame.TeamColour,
			LapNumber:     st.frame.LapNumber,
		})
	}

	return standings
}

package openf1

import (
	"strings"
	"time"
)

// Timestamp layouts observed in API responses. The API is not consistent
// about fractional seconds or explicit offsets.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time is a tolerant timestamp. Malformed or missing values decode to the
// zero time instead of failing the whole record batch; consumers filter
// zero-time samples where a timestamp is mandatory.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// Session represents one race event instance
type Session struct {
	SessionKey  int    `json:"session_key"`
	MeetingKey  int    `json:"meeting_key"`
	Year        int    `json:"year"`
	SessionName string `json:"session_name"`
	SessionType string `json:"session_type"`
	CountryName string `json:"country_name"`
	Location    string `json:"location"`
	DateStart   Time   `json:"date_start"`
}

// Driver represents a driver entry for one session
type Driver struct {
	DriverNumber int    `json:"driver_number"`
	NameAcronym  string `json:"name_acronym"`
	TeamName     string `json:"team_name"`
	TeamColour   string `json:"team_colour"`
}

// Lap represents a single lap for one driver. Nullable attributes are
// pointers so absent columns survive decoding untouched.
type Lap struct {
	MeetingKey      *int     `json:"meeting_key"`
	SessionKey      int      `json:"session_key"`
	DriverNumber    int      `json:"driver_number"`
	LapNumber       int      `json:"lap_number"`
	DateStart       Time     `json:"date_start"`
	LapDuration     *float64 `json:"lap_duration"`
	DurationSector1 *float64 `json:"duration_sector_1"`
	DurationSector2 *float64 `json:"duration_sector_2"`
	DurationSector3 *float64 `json:"duration_sector_3"`
	STSpeed         *float64 `json:"st_speed"`
	I1Speed         *float64 `json:"i1_speed"`
	I2Speed         *float64 `json:"i2_speed"`
	SegmentsSector1 []*int   `json:"segments_sector_1"`
	SegmentsSector2 []*int   `json:"segments_sector_2"`
	SegmentsSector3 []*int   `json:"segments_sector_3"`
	IsPitOutLap     bool     `json:"is_pit_out_lap"`
}

// Duration returns the lap duration in seconds, treating a missing value
// as zero
func (l Lap) Duration() float64 {
	if l.LapDuration == nil {
		return 0
	}
	return *l.LapDuration
}

// EndTime returns the computed end of the lap (start + duration)
func (l Lap) EndTime() time.Time {
	return l.DateStart.Add(time.Duration(l.Duration() * float64(time.Second)))
}

// Stint represents a continuous run on one tyre compound, bounded by lap
// numbers (inclusive on both ends)
type Stint struct {
	SessionKey     int    `json:"session_key"`
	DriverNumber   int    `json:"driver_number"`
	LapStart       int    `json:"lap_start"`
	LapEnd         int    `json:"lap_end"`
	Compound       string `json:"compound"`
	TyreAgeAtStart int    `json:"tyre_age_at_start"`
}

// Contains reports whether the lap number falls inside the stint range
func (s Stint) Contains(lapNumber int) bool {
	return s.LapStart <= lapNumber && lapNumber <= s.LapEnd
}

// WeatherSample represents one session-wide weather reading
type WeatherSample struct {
	Date             Time     `json:"date"`
	Rainfall         *float64 `json:"rainfall"`
	AirTemperature   *float64 `json:"air_temperature"`
	TrackTemperature *float64 `json:"track_temperature"`
	Humidity         *float64 `json:"humidity"`
}

// LocationSample represents one high-frequency position reading for a
// driver. Coordinates are track-relative.
type LocationSample struct {
	SessionKey   int     `json:"session_key"`
	DriverNumber int     `json:"driver_number"`
	Date         Time    `json:"date"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Z            float64 `json:"z"`
}

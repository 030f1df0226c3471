package sqlite

import (
	"database/sql"
	"time"
)

// SaveMode controls how SaveRows treats existing table contents
type SaveMode string

const (
	// SaveAppend adds new rows, relying on table constraints to drop duplicates
	SaveAppend SaveMode = "append"
	// SaveReplace deletes existing rows before inserting
	SaveReplace SaveMode = "replace"
	// SaveFail refuses to write if the table already contains rows
	SaveFail SaveMode = "fail"
)

// TrainingRow is one per-lap record of the ML training dataset: lap timing
// joined with derived tyre info and the nearest weather sample
type TrainingRow struct {
	MeetingKey       *int      `json:"meeting_key"`
	SessionKey       int       `json:"session_key"`
	DriverNumber     int       `json:"driver_number"`
	LapNumber        int       `json:"lap_number"`
	DateStart        time.Time `json:"date_start"`
	LapDuration      *float64  `json:"lap_duration"`
	DurationSector1  *float64  `json:"duration_sector_1"`
	DurationSector2  *float64  `json:"duration_sector_2"`
	DurationSector3  *float64  `json:"duration_sector_3"`
	STSpeed          *float64  `json:"st_speed"`
	I1Speed          *float64  `json:"i1_speed"`
	I2Speed          *float64  `json:"i2_speed"`
	SegmentsSector1  string    `json:"segments_sector_1"`
	SegmentsSector2  string    `json:"segments_sector_2"`
	SegmentsSector3  string    `json:"segments_sector_3"`
	IsPitOutLap      bool      `json:"is_pit_out_lap"`
	TireCompound     *string   `json:"tire_compound"`
	LapsOnTire       *int      `json:"laps_on_tire"`
	Rainfall         *float64  `json:"rainfall"`
	TrackTemperature *float64  `json:"track_temperature"`
	AirTemperature   *float64  `json:"air_temperature"`
	Humidity         *float64  `json:"humidity"`
}

// TelemetryRow is one position sample of the replay dataset, annotated
// with its containing lap
type TelemetryRow struct {
	SessionKey    int       `json:"session_key"`
	DriverAcronym string    `json:"driver_acronym"`
	DriverNumber  int       `json:"driver_number"`
	LapNumber     int       `json:"lap_number"`
	LapDuration   float64   `json:"lap_duration"`
	Timestamp     time.Time `json:"timestamp"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Z             float64   `json:"z"`
}

// SessionRow is cached session metadata used for the race calendar
type SessionRow struct {
	SessionKey  int       `json:"session_key"`
	MeetingKey  int       `json:"meeting_key"`
	Year        int       `json:"year"`
	SessionName string    `json:"session_name"`
	SessionType string    `json:"session_type"`
	CountryName string    `json:"country_name"`
	Location    string    `json:"location"`
	DateStart   time.Time `json:"date_start"`
}

// Timestamps are stored as RFC3339 text, matching how they are inserted
const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// nullable converts pointer fields to driver arguments
func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// pointer helpers for scanning nullable columns
func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

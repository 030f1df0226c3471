package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/apexf1/pitwall/pkg/logger"
)

// TrainingStorage handles storage of the per-lap ML training dataset
type TrainingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTrainingStorage creates a new SQLite training data storage
func NewTrainingStorage(db *sql.DB, log *logger.Logger) *TrainingStorage {
	storage := &TrainingStorage{
		db:     db,
		logger: log.Named("sqlite-training"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		storage.logger.Error("Failed to initialize training storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *TrainingStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ml_training_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			meeting_key INTEGER,
			session_key INTEGER,
			driver_number INTEGER,
			lap_number INTEGER,
			date_start TIMESTAMP,
			lap_duration FLOAT,
			duration_sector_1 FLOAT,
			duration_sector_2 FLOAT,
			duration_sector_3 FLOAT,
			st_speed FLOAT,
			i1_speed FLOAT,
			i2_speed FLOAT,
			segments_sector_1 TEXT,
			segments_sector_2 TEXT,
			segments_sector_3 TEXT,
			is_pit_out_lap BOOLEAN,
			tire_compound TEXT,
			laps_on_tire INTEGER,
			rainfall FLOAT,
			track_temperature FLOAT,
			air_temperature FLOAT,
			humidity FLOAT,
			UNIQUE(session_key, driver_number, lap_number)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ml_training_data table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_ml_lookup ON ml_training_data(session_key, driver_number)`)
	if err != nil {
		return fmt.Errorf("failed to create training index: %w", err)
	}

	return nil
}

// SaveRows writes training rows according to the save mode. With
// SaveAppend, rows violating the (session, driver, lap) uniqueness
// constraint are silently dropped.
func (s *TrainingStorage) SaveRows(rows []TrainingRow, mode SaveMode) (int64, error) {
	if len(rows) == 0 {
		s.logger.Debug("No training rows to save")
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	switch mode {
	case SaveReplace:
		if _, err := tx.Exec(`DELETE FROM ml_training_data`); err != nil {
			return 0, fmt.Errorf("failed to clear ml_training_data: %w", err)
		}
	case SaveFail:
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM ml_training_data`).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to count existing rows: %w", err)
		}
		if count > 0 {
			return 0, fmt.Errorf("ml_training_data already contains %d rows", count)
		}
	case SaveAppend:
		// nothing to prepare
	default:
		return 0, fmt.Errorf("unknown save mode: %s", mode)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO ml_training_data
		(meeting_key, session_key, driver_number, lap_number, date_start,
		 lap_duration, duration_sector_1, duration_sector_2, duration_sector_3,
		 st_speed, i1_speed, i2_speed,
		 segments_sector_1, segments_sector_2, segments_sector_3,
		 is_pit_out_lap, tire_compound, laps_on_tire,
		 rainfall, track_temperature, air_temperature, humidity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		result, err := stmt.Exec(
			nullInt(row.MeetingKey),
			row.SessionKey,
			row.DriverNumber,
			row.LapNumber,
			formatTime(row.DateStart),
			nullFloat(row.LapDuration),
			nullFloat(row.DurationSector1),
			nullFloat(row.DurationSector2),
			nullFloat(row.DurationSector3),
			nullFloat(row.STSpeed),
			nullFloat(row.I1Speed),
			nullFloat(row.I2Speed),
			row.SegmentsSector1,
			row.SegmentsSector2,
			row.SegmentsSector3,
			row.IsPitOutLap,
			nullString(row.TireCompound),
			nullInt(row.LapsOnTire),
			nullFloat(row.Rainfall),
			nullFloat(row.TrackTemperature),
			nullFloat(row.AirTemperature),
			nullFloat(row.Humidity),
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert training row: %w", err)
		}
		n, _ := result.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit training rows: %w", err)
	}

	s.logger.Info("Saved training rows",
		logger.Int64("inserted", inserted),
		logger.Int("total", len(rows)))
	return inserted, nil
}

// HasSession reports whether any training rows exist for the session
func (s *TrainingStorage) HasSession(sessionKey int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM ml_training_data WHERE session_key = ?)`,
		sessionKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session presence: %w", err)
	}
	return exists, nil
}

// RowsForSession returns all training rows of a session ordered by
// (driver_number, lap_number)
func (s *TrainingStorage) RowsForSession(sessionKey int) ([]TrainingRow, error) {
	rows, err := s.db.Query(`
		SELECT meeting_key, session_key, driver_number, lap_number, date_start,
		       lap_duration, duration_sector_1, duration_sector_2, duration_sector_3,
		       st_speed, i1_speed, i2_speed,
		       segments_sector_1, segments_sector_2, segments_sector_3,
		       is_pit_out_lap, tire_compound, laps_on_tire,
		       rainfall, track_temperature, air_temperature, humidity
		FROM ml_training_data
		WHERE session_key = ?
		ORDER BY driver_number, lap_number`,
		sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query training rows: %w", err)
	}
	defer rows.Close()

	return s.scanTrainingRows(rows)
}

// scanTrainingRows scans database rows into TrainingRow structs
func (s *TrainingStorage) scanTrainingRows(rows *sql.Rows) ([]TrainingRow, error) {
	var records []TrainingRow
	for rows.Next() {
		var (
			record                              TrainingRow
			meetingKey, lapsOnTire              sql.NullInt64
			dateStart                           string
			lapDuration, sector1, sector2       sql.NullFloat64
			sector3, stSpeed, i1Speed, i2Speed  sql.NullFloat64
			rainfall, trackTemp, airTemp, humid sql.NullFloat64
			segments1, segments2, segments3     sql.NullString
			tireCompound                        sql.NullString
		)

		if err := rows.Scan(
			&meetingKey,
			&record.SessionKey,
			&record.DriverNumber,
			&record.LapNumber,
			&dateStart,
			&lapDuration,
			&sector1,
			&sector2,
			&sector3,
			&stSpeed,
			&i1Speed,
			&i2Speed,
			&segments1,
			&segments2,
			&segments3,
			&record.IsPitOutLap,
			&tireCompound,
			&lapsOnTire,
			&rainfall,
			&trackTemp,
			&airTemp,
			&humid,
		); err != nil {
			return nil, fmt.Errorf("failed to scan training row: %w", err)
		}

		record.MeetingKey = intPtr(meetingKey)
		record.DateStart = parseTime(dateStart)
		record.LapDuration = floatPtr(lapDuration)
		record.DurationSector1 = floatPtr(sector1)
		record.DurationSector2 = floatPtr(sector2)
		record.DurationSector3 = floatPtr(sector3)
		record.STSpeed = floatPtr(stSpeed)
		record.I1Speed = floatPtr(i1Speed)
		record.I2Speed = floatPtr(i2Speed)
		record.SegmentsSector1 = segments1.String
		record.SegmentsSector2 = segments2.String
		record.SegmentsSector3 = segments3.String
		record.TireCompound = stringPtr(tireCompound)
		record.LapsOnTire = intPtr(lapsOnTire)
		record.Rainfall = floatPtr(rainfall)
		record.TrackTemperature = floatPtr(trackTemp)
		record.AirTemperature = floatPtr(airTemp)
		record.Humidity = floatPtr(humid)

		records = append(records, record)
	}

	return records, rows.Err()
}

package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/apexf1/pitwall/pkg/logger"
)

// TelemetryStorage handles storage of high-frequency replay positions
type TelemetryStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTelemetryStorage creates a new SQLite telemetry storage
func NewTelemetryStorage(db *sql.DB, log *logger.Logger) *TelemetryStorage {
	storage := &TelemetryStorage{
		db:     db,
		logger: log.Named("sqlite-telemetry"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		storage.logger.Error("Failed to initialize telemetry storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *TelemetryStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS race_telemetry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_key INTEGER,
			driver_acronym TEXT,
			driver_number INTEGER,
			lap_number INTEGER,
			lap_duration FLOAT,
			timestamp TIMESTAMP,
			x INTEGER,
			y INTEGER,
			z INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create race_telemetry table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_telemetry_lookup ON race_telemetry(session_key, lap_number)`)
	if err != nil {
		return fmt.Errorf("failed to create telemetry index: %w", err)
	}

	return nil
}

// SaveRows writes telemetry rows. The table carries no uniqueness
// constraint; the append path is strictly additive.
func (s *TelemetryStorage) SaveRows(rows []TelemetryRow, mode SaveMode) (int64, error) {
	if len(rows) == 0 {
		s.logger.Debug("No telemetry rows to save")
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	switch mode {
	case SaveReplace:
		if _, err := tx.Exec(`DELETE FROM race_telemetry`); err != nil {
			return 0, fmt.Errorf("failed to clear race_telemetry: %w", err)
		}
	case SaveFail:
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM race_telemetry`).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to count existing rows: %w", err)
		}
		if count > 0 {
			return 0, fmt.Errorf("race_telemetry already contains %d rows", count)
		}
	case SaveAppend:
		// nothing to prepare
	default:
		return 0, fmt.Errorf("unknown save mode: %s", mode)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO race_telemetry
		(session_key, driver_acronym, driver_number, lap_number, lap_duration, timestamp, x, y, z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(
			row.SessionKey,
			row.DriverAcronym,
			row.DriverNumber,
			row.LapNumber,
			row.LapDuration,
			formatTime(row.Timestamp),
			row.X,
			row.Y,
			row.Z,
		); err != nil {
			return 0, fmt.Errorf("failed to insert telemetry row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit telemetry rows: %w", err)
	}

	s.logger.Info("Saved telemetry rows", logger.Int("count", len(rows)))
	return int64(len(rows)), nil
}

// HasSession reports whether any telemetry rows exist for the session
func (s *TelemetryStorage) HasSession(sessionKey int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM race_telemetry WHERE session_key = ?)`,
		sessionKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session presence: %w", err)
	}
	return exists, nil
}

// RowsForSession returns all telemetry rows of a session in
// chronological order
func (s *TelemetryStorage) RowsForSession(sessionKey int) ([]TelemetryRow, error) {
	rows, err := s.db.Query(`
		SELECT session_key, driver_acronym, driver_number, lap_number, lap_duration, timestamp, x, y, z
		FROM race_telemetry
		WHERE session_key = ?
		ORDER BY timestamp`,
		sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry rows: %w", err)
	}
	defer rows.Close()

	var records []TelemetryRow
	for rows.Next() {
		var record TelemetryRow
		var timestamp string
		if err := rows.Scan(
			&record.SessionKey,
			&record.DriverAcronym,
			&record.DriverNumber,
			&record.LapNumber,
			&record.LapDuration,
			&timestamp,
			&record.X,
			&record.Y,
			&record.Z,
		); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry row: %w", err)
		}
		record.Timestamp = parseTime(timestamp)
		records = append(records, record)
	}

	return records, rows.Err()
}

// DeleteSessionsNotIn removes telemetry for every session key outside the
// retained set. An empty key set skips the delete entirely: a NOT IN ()
// predicate is invalid SQL and must not be issued.
func (s *TelemetryStorage) DeleteSessionsNotIn(keys []int) error {
	switch len(keys) {
	case 0:
		s.logger.Warn("No session keys to retain, skipping telemetry cleanup")
		return nil
	case 1:
		if _, err := s.db.Exec(
			`DELETE FROM race_telemetry WHERE session_key NOT IN (?)`,
			keys[0],
		); err != nil {
			return fmt.Errorf("failed to clean up old sessions: %w", err)
		}
	default:
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k
		}
		query := fmt.Sprintf(`DELETE FROM race_telemetry WHERE session_key NOT IN (%s)`, placeholders)
		if _, err := s.db.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to clean up old sessions: %w", err)
		}
	}

	s.logger.Info("Removed telemetry outside retention window",
		logger.Int("retained_sessions", len(keys)))
	return nil
}

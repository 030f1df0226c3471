package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/apexf1/pitwall/pkg/logger"
)

// SessionStorage caches session metadata so the race calendar can render
// even when the remote API is unreachable
type SessionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSessionStorage creates a new SQLite session metadata storage
func NewSessionStorage(db *sql.DB, log *logger.Logger) *SessionStorage {
	storage := &SessionStorage{
		db:     db,
		logger: log.Named("sqlite-sessions"),
	}

	if err := storage.initDB(); err != nil {
		storage.logger.Error("Failed to initialize session storage", logger.Error(err))
	}

	return storage
}

func (s *SessionStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_key INTEGER PRIMARY KEY,
			meeting_key INTEGER,
			year INTEGER,
			session_name TEXT,
			session_type TEXT,
			country_name TEXT,
			location TEXT,
			date_start TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// SaveSessions upserts session metadata rows
func (s *SessionStorage) SaveSessions(sessions []SessionRow) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO sessions
		(session_key, meeting_key, year, session_name, session_type, country_name, location, date_start)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, session := range sessions {
		if _, err := stmt.Exec(
			session.SessionKey,
			session.MeetingKey,
			session.Year,
			session.SessionName,
			session.SessionType,
			session.CountryName,
			session.Location,
			formatTime(session.DateStart),
		); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sessions: %w", err)
	}

	s.logger.Debug("Cached session metadata", logger.Int("count", len(sessions)))
	return nil
}

// SessionsByYear returns cached sessions of one year ordered by start date
func (s *SessionStorage) SessionsByYear(year int) ([]SessionRow, error) {
	rows, err := s.db.Query(`
		SELECT session_key, meeting_key, year, session_name, session_type, country_name, location, date_start
		FROM sessions
		WHERE year = ?
		ORDER BY date_start`,
		year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRow
	for rows.Next() {
		var record SessionRow
		var dateStart string
		if err := rows.Scan(
			&record.SessionKey,
			&record.MeetingKey,
			&record.Year,
			&record.SessionName,
			&record.SessionType,
			&record.CountryName,
			&record.Location,
			&dateStart,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		record.DateStart = parseTime(dateStart)
		records = append(records, record)
	}

	return records, rows.Err()
}

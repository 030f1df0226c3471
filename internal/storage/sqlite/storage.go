package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/apexf1/pitwall/pkg/logger"
)

// Storage wraps the SQLite database handle shared by the table-specific
// storage types
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// New opens (or creates) the SQLite database at path
func New(path string, log *logger.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; the collection pipeline batches its writes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &Storage{
		db:     db,
		logger: log.Named("sqlite"),
	}, nil
}

// DB returns the underlying database handle
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Query runs an arbitrary query and returns the rows
func (s *Storage) Query(query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	return rows, nil
}

// Execute runs a statement that returns no rows
func (s *Storage) Execute(query string, args ...any) error {
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// TestConnection checks that the database is reachable
func (s *Storage) TestConnection() bool {
	var one int
	if err := s.db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		s.logger.Warn("Database connection test failed", logger.Error(err))
		return false
	}
	return one == 1
}

// Close closes the database handle
func (s *Storage) Close() error {
	return s.db.Close()
}

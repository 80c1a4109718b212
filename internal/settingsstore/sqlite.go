package settingsstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/grayridge/acphost/internal/common/apperr"
)

// SQLite is a durable SettingsStore backed by modernc.org/sqlite's
// pure-Go driver, avoiding a cgo dependency for what's otherwise a small
// embedded settings database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a settings database at path
// and ensures its schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.AgentSetupFailed, "failed to open settings database", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.AgentSetupFailed, "failed to initialize settings schema", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settingsstore: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("settingsstore: set %q: %w", key, err)
	}
	return nil
}

// Package history persists run outcomes to a local SQLite database. It
// implements the engine's outcome-recording collaborator.
package history

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite history database.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the history database and runs migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := &Store{sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.Exec(`CREATE TABLE IF NOT EXISTS travel_history (
		id            TEXT PRIMARY KEY,
		role_name     TEXT NOT NULL,
		source_area   TEXT NOT NULL,
		source_server TEXT NOT NULL,
		target_area   TEXT NOT NULL,
		target_server TEXT NOT NULL,
		succeeded     INTEGER NOT NULL,
		order_id      TEXT NOT NULL DEFAULT '',
		attempts      INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
	)`)
	return err
}

// Entry is one recorded run outcome.
type Entry struct {
	ID           string `json:"id"`
	RoleName     string `json:"role_name"`
	SourceArea   string `json:"source_area"`
	SourceServer string `json:"source_server"`
	TargetArea   string `json:"target_area"`
	TargetServer string `json:"target_server"`
	Succeeded    bool   `json:"succeeded"`
	OrderID      string `json:"order_id"`
	Attempts     int    `json:"attempts"`
	CreatedAt    string `json:"created_at"`
}

// Insert stores one outcome and returns its generated id.
func (s *Store) Insert(e Entry) (string, error) {
	id := uuid.New().String()
	_, err := s.Exec(`INSERT INTO travel_history
		(id, role_name, source_area, source_server, target_area, target_server, succeeded, order_id, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.RoleName, e.SourceArea, e.SourceServer, e.TargetArea, e.TargetServer,
		e.Succeeded, e.OrderID, e.Attempts)
	if err != nil {
		return "", fmt.Errorf("insert history: %w", err)
	}
	return id, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(`SELECT id, role_name, source_area, source_server,
		target_area, target_server, succeeded, order_id, attempts, created_at
		FROM travel_history ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RoleName, &e.SourceArea, &e.SourceServer,
			&e.TargetArea, &e.TargetServer, &e.Succeeded, &e.OrderID, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

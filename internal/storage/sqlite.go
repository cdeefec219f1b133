package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	sqlRepository
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{sqlRepository{db: db, uniqueViolation: sqliteUniqueViolation}}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		model_type TEXT NOT NULL,
		specialization TEXT NOT NULL DEFAULT '',
		api_endpoint TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		topic_category TEXT NOT NULL,
		topic_subcategory TEXT NOT NULL DEFAULT '',
		framing_prompt TEXT NOT NULL,
		scheduled_at DATETIME NOT NULL,
		duration_sec INTEGER NOT NULL,
		max_participants INTEGER NOT NULL,
		phase TEXT NOT NULL,
		live_start DATETIME,
		ended_at DATETIME,
		created_at DATETIME NOT NULL,
		created_by TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_phase ON sessions(phase);
	CREATE INDEX IF NOT EXISTS idx_sessions_category ON sessions(topic_category);

	CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		bot_id TEXT NOT NULL REFERENCES bots(id),
		interest_statement TEXT NOT NULL DEFAULT '',
		registered_at DATETIME NOT NULL,
		UNIQUE (session_id, bot_id)
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		participant_id TEXT NOT NULL,
		content TEXT NOT NULL,
		urgency_score INTEGER NOT NULL,
		is_yield BOOLEAN NOT NULL,
		is_human BOOLEAN NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		end_reason TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, started_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// sqliteDSN adds the connection options the repository depends on, keeping
// any query string the caller already supplied.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func sqliteUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const pqUniqueViolation = pq.ErrorCode("23505")

type PostgresRepository struct {
	sqlRepository
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo := &PostgresRepository{sqlRepository{
		db:              db,
		numbered:        true,
		forUpdate:       " FOR UPDATE",
		uniqueViolation: postgresUniqueViolation,
	}}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		model_type TEXT NOT NULL,
		specialization TEXT NOT NULL DEFAULT '',
		api_endpoint TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		topic_category TEXT NOT NULL,
		topic_subcategory TEXT NOT NULL DEFAULT '',
		framing_prompt TEXT NOT NULL,
		scheduled_at TIMESTAMPTZ NOT NULL,
		duration_sec BIGINT NOT NULL,
		max_participants INTEGER NOT NULL,
		phase TEXT NOT NULL,
		live_start TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		created_by TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_phase ON sessions(phase);
	CREATE INDEX IF NOT EXISTS idx_sessions_category ON sessions(topic_category);

	CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		bot_id TEXT NOT NULL REFERENCES bots(id),
		interest_statement TEXT NOT NULL DEFAULT '',
		registered_at TIMESTAMPTZ NOT NULL,
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
		started_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL,
		end_reason TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, started_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func postgresUniqueViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == pqUniqueViolation
}

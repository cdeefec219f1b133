package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hperssn/parlay/internal/domain"
)

// sqlRepository carries the queries shared by the SQLite and Postgres
// repositories. Queries are written with ? placeholders and rebound per
// dialect.
type sqlRepository struct {
	db       *sql.DB
	numbered bool

	// forUpdate is appended to reads whose rows must stay locked until commit.
	forUpdate       string
	uniqueViolation func(error) bool
}

func (r *sqlRepository) q(query string) string {
	if !r.numbered {
		return query
	}
	return rebindNumbered(query)
}

// rebindNumbered rewrites ? placeholders as $1, $2, ...
func rebindNumbered(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *sqlRepository) isUniqueViolation(err error) bool {
	return r.uniqueViolation != nil && r.uniqueViolation(err)
}

// CreateBot relies on the unique name constraint, so concurrent creates of
// the same name fail with ErrBotNameTaken rather than a driver error.
func (r *sqlRepository) CreateBot(ctx context.Context, b *domain.Bot) error {
	query := `
		INSERT INTO bots (id, name, model_type, specialization, api_endpoint, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.q(query),
		b.ID,
		b.Name,
		b.ModelType,
		b.Specialization,
		b.APIEndpoint,
		b.CreatedAt.UTC(),
	)
	if r.isUniqueViolation(err) {
		return domain.ErrBotNameTaken
	}
	if err != nil {
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

func (r *sqlRepository) GetBot(ctx context.Context, id string) (*domain.Bot, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+botColumns+` FROM bots WHERE id = ?`), id)
	b, err := scanBot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bot: %w", err)
	}
	return b, nil
}

func (r *sqlRepository) ListBots(ctx context.Context) ([]domain.Bot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+botColumns+` FROM bots ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var bots []domain.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		bots = append(bots, *b)
	}
	return bots, rows.Err()
}

func (r *sqlRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.q(query),
		s.ID,
		s.Title,
		s.TopicCategory,
		s.TopicSubcategory,
		s.FramingPrompt,
		s.ScheduledAt.UTC(),
		int64(s.Duration/time.Second),
		s.MaxParticipants,
		string(s.Phase),
		nullTime(s.LiveStart),
		nullTime(s.EndedAt),
		s.CreatedAt.UTC(),
		s.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sqlRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *sqlRepository) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1 = 1`
	var args []any
	if filter.Phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(filter.Phase))
	}
	if filter.Category != "" {
		query += ` AND topic_category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY scheduled_at DESC`

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// MarkLive moves a session from registration_open to live and stamps its
// live start. It fails with ErrInvalidTransition from any other phase.
func (r *sqlRepository) MarkLive(ctx context.Context, id string, at time.Time) (*domain.Session, error) {
	if err := r.advance(ctx, id, domain.PhaseRegistrationOpen, domain.PhaseLive, "live_start", at); err != nil {
		return nil, err
	}
	return r.GetSession(ctx, id)
}

func (r *sqlRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return r.advance(ctx, id, domain.PhaseLive, domain.PhaseCompleted, "ended_at", at)
}

func (r *sqlRepository) advance(ctx context.Context, id string, from, to domain.Phase, stampColumn string, at time.Time) error {
	query := `UPDATE sessions SET phase = ?, ` + stampColumn + ` = ? WHERE id = ? AND phase = ?`
	res, err := r.db.ExecContext(ctx, r.q(query), string(to), at.UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("update session phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session phase: %w", err)
	}
	if n == 1 {
		return nil
	}

	s, err := r.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, s.Phase, to)
}

// Register signs a bot up for a session that is still open and not full.
// The session row is locked for the transaction so concurrent registrations
// cannot overfill it.
func (r *sqlRepository) Register(ctx context.Context, reg *domain.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer tx.Rollback()

	var (
		phase           string
		maxParticipants int
	)
	err = tx.QueryRowContext(ctx, r.q(`SELECT phase, max_participants FROM sessions WHERE id = ?`+r.forUpdate), reg.SessionID).
		Scan(&phase, &maxParticipants)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s := domain.Session{Phase: domain.Phase(phase)}
	if !s.AcceptsRegistrations() {
		return domain.ErrRegistrationClosed
	}

	err = tx.QueryRowContext(ctx, r.q(`SELECT name FROM bots WHERE id = ?`), reg.BotID).Scan(&reg.BotName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrBotNotFound
	}
	if err != nil {
		return fmt.Errorf("load bot: %w", err)
	}

	var already, count int
	err = tx.QueryRowContext(ctx, r.q(`
		SELECT
			COALESCE(SUM(CASE WHEN bot_id = ? THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM registrations
		WHERE session_id = ?
	`), reg.BotID, reg.SessionID).Scan(&already, &count)
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	if already > 0 {
		return domain.ErrAlreadyRegistered
	}
	if count >= maxParticipants {
		return domain.ErrSessionFull
	}

	query := `
		INSERT INTO registrations (id, session_id, bot_id, interest_statement, registered_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, r.q(query),
		reg.ID,
		reg.SessionID,
		reg.BotID,
		reg.InterestStatement,
		reg.RegisteredAt.UTC(),
	)
	if r.isUniqueViolation(err) {
		return domain.ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return tx.Commit()
}

func (r *sqlRepository) ListRegistrations(ctx context.Context, sessionID string) ([]domain.Registration, error) {
	query := `
		SELECT r.id, r.session_id, r.bot_id, b.name, r.interest_statement, r.registered_at
		FROM registrations r
		JOIN bots b ON b.id = r.bot_id
		WHERE r.session_id = ?
		ORDER BY r.registered_at
	`
	rows, err := r.db.QueryContext(ctx, r.q(query), sessionID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.ID, &reg.SessionID, &reg.BotID, &reg.BotName, &reg.InterestStatement, &reg.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.RegisteredAt = reg.RegisteredAt.UTC()
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *sqlRepository) CountRegistrations(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM registrations WHERE session_id = ?`), sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// Roster lists the participant ids registered for a session.
func (r *sqlRepository) Roster(ctx context.Context, sessionID string) ([]domain.ParticipantID, error) {
	regs, err := r.ListRegistrations(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	roster := make([]domain.ParticipantID, 0, len(regs))
	for _, reg := range regs {
		roster = append(roster, domain.ParticipantID(reg.BotID))
	}
	return roster, nil
}

func (r *sqlRepository) AppendTurn(ctx context.Context, sessionID string, rec domain.TurnRecord) error {
	query := `
		INSERT INTO turns (` + turnColumns + `, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.q(query),
		rec.ID,
		sessionID,
		string(rec.ParticipantID),
		rec.Content,
		rec.UrgencyScore,
		rec.IsYield,
		rec.IsHuman(),
		rec.StartedAt.UTC(),
		rec.Duration.Milliseconds(),
		string(rec.EndReason),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (r *sqlRepository) Transcript(ctx context.Context, sessionID string) ([]domain.TurnRecord, error) {
	query := `
		SELECT ` + turnColumns + `
		FROM turns
		WHERE session_id = ?
		ORDER BY started_at, recorded_at
	`
	rows, err := r.db.QueryContext(ctx, r.q(query), sessionID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	var turns []domain.TurnRecord
	for rows.Next() {
		rec, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *rec)
	}
	return turns, rows.Err()
}

func (r *sqlRepository) Close() error {
	return r.db.Close()
}

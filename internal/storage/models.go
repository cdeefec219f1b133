package storage

import (
	"database/sql"
	"time"

	"github.com/hperssn/parlay/internal/domain"
)

const (
	sessionColumns = `id, title, topic_category, topic_subcategory, framing_prompt, scheduled_at,
		duration_sec, max_participants, phase, live_start, ended_at, created_at, created_by`
	botColumns  = `id, name, model_type, specialization, api_endpoint, created_at`
	turnColumns = `id, session_id, participant_id, content, urgency_score, is_yield, is_human,
		started_at, duration_ms, end_reason`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s           domain.Session
		durationSec int64
		phase       string
		liveStart   sql.NullTime
		endedAt     sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.TopicCategory,
		&s.TopicSubcategory,
		&s.FramingPrompt,
		&s.ScheduledAt,
		&durationSec,
		&s.MaxParticipants,
		&phase,
		&liveStart,
		&endedAt,
		&s.CreatedAt,
		&s.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	s.Duration = time.Duration(durationSec) * time.Second
	s.Phase = domain.Phase(phase)
	if liveStart.Valid {
		s.LiveStart = liveStart.Time.UTC()
	}
	if endedAt.Valid {
		s.EndedAt = endedAt.Time.UTC()
	}
	s.ScheduledAt = s.ScheduledAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

func scanBot(row scanner) (*domain.Bot, error) {
	var b domain.Bot
	if err := row.Scan(&b.ID, &b.Name, &b.ModelType, &b.Specialization, &b.APIEndpoint, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

func scanTurn(row scanner) (*domain.TurnRecord, error) {
	var (
		rec         domain.TurnRecord
		participant string
		durationMS  int64
		isHuman     bool
		reason      string
	)
	err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&participant,
		&rec.Content,
		&rec.UrgencyScore,
		&rec.IsYield,
		&isHuman,
		&rec.StartedAt,
		&durationMS,
		&reason,
	)
	if err != nil {
		return nil, err
	}

	rec.ParticipantID = domain.ParticipantID(participant)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.EndReason = domain.EndReason(reason)
	rec.StartedAt = rec.StartedAt.UTC()
	return &rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

package storage

import (
	"context"
	"time"

	"github.com/hperssn/parlay/internal/domain"
)

// Repository persists the catalogue of bots, sessions and registrations and
// the transcript of finished turns. It satisfies the runner's
// SessionDirectory and TranscriptStore.
type Repository interface {
	CreateBot(ctx context.Context, b *domain.Bot) error
	GetBot(ctx context.Context, id string) (*domain.Bot, error)
	ListBots(ctx context.Context) ([]domain.Bot, error)

	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
	MarkLive(ctx context.Context, id string, at time.Time) (*domain.Session, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error

	Register(ctx context.Context, r *domain.Registration) error
	ListRegistrations(ctx context.Context, sessionID string) ([]domain.Registration, error)
	CountRegistrations(ctx context.Context, sessionID string) (int, error)
	Roster(ctx context.Context, sessionID string) ([]domain.ParticipantID, error)

	AppendTurn(ctx context.Context, sessionID string, rec domain.TurnRecord) error
	Transcript(ctx context.Context, sessionID string) ([]domain.TurnRecord, error)

	Close() error
}

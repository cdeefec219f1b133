package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/floor"
)

const deliveryTimeout = 5 * time.Second

// TranscriptStore persists finished turns.
type TranscriptStore interface {
	AppendTurn(ctx context.Context, sessionID string, rec domain.TurnRecord) error
}

// Notifier pushes floor events to live viewers. Broadcast must not block
// for long; slow viewers are the notifier's problem.
type Notifier interface {
	Broadcast(sessionID string, ev floor.Event)
}

// SessionDirectory is the persistence layer's view of sessions and their
// registered participants.
type SessionDirectory interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
	Roster(ctx context.Context, sessionID string) ([]domain.ParticipantID, error)
	MarkLive(ctx context.Context, id string, at time.Time) (*domain.Session, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
}

// outbox queues events published under the controller lock so persistence
// and broadcast happen off the floor's critical path.
type outbox struct {
	mu     sync.Mutex
	queue  []floor.Event
	signal chan struct{}
}

func newOutbox() *outbox {
	return &outbox{signal: make(chan struct{}, 1)}
}

func (o *outbox) Publish(ev floor.Event) {
	o.mu.Lock()
	o.queue = append(o.queue, ev)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *outbox) drain() []floor.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queue
	o.queue = nil
	return q
}

type sessionRunner struct {
	mu sync.Mutex

	ctrl   *floor.Controller
	out    *outbox
	ctx    context.Context
	cancel context.CancelFunc
	tick   time.Duration

	directory  SessionDirectory
	transcript TranscriptStore
	notifier   Notifier
	logger     *slog.Logger

	finished chan struct{}
	endedAt  time.Time
}

func newSessionRunner(s *domain.Session, roster []domain.ParticipantID, cfg floor.Config, tick time.Duration, deps Deps) *sessionRunner {
	ctx, cancel := context.WithCancel(context.Background())
	out := newOutbox()
	return &sessionRunner{
		ctrl:       floor.NewController(s.ID, s.LiveStart, s.Duration, roster, cfg, out),
		out:        out,
		ctx:        ctx,
		cancel:     cancel,
		tick:       tick,
		directory:  deps.Directory,
		transcript: deps.Transcript,
		notifier:   deps.Notifier,
		logger:     deps.Logger.With("session_id", s.ID),
		finished:   make(chan struct{}),
	}
}

func (r *sessionRunner) Start() {
	go r.tickLoop()
	go r.dispatchLoop()
}

// tickLoop drives time-based transitions so turns and sessions end on
// schedule even when no requests arrive.
func (r *sessionRunner) tickLoop() {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.ctrl.Tick(now)

		case <-r.ctrl.Done():
			return

		case <-r.ctx.Done():
			return
		}
	}
}

func (r *sessionRunner) dispatchLoop() {
	defer close(r.finished)

	for {
		select {
		case <-r.out.signal:
			if r.deliver(r.out.drain()) {
				return
			}

		case <-r.ctx.Done():
			r.deliver(r.out.drain())
			return
		}
	}
}

// deliver hands events to the transcript store, directory and notifier in
// publish order. It reports whether the session-ended event went through.
func (r *sessionRunner) deliver(events []floor.Event) bool {
	ended := false
	for _, ev := range events {
		switch ev.Type {
		case floor.EventTurnEnded:
			r.appendTurn(*ev.Turn)
		case floor.EventSessionEnded:
			r.markCompleted(ev.At)
			ended = true
		}
		if r.notifier != nil {
			r.notifier.Broadcast(ev.SessionID, ev)
		}
	}
	return ended
}

func (r *sessionRunner) appendTurn(rec domain.TurnRecord) {
	if r.transcript == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := r.transcript.AppendTurn(ctx, rec.SessionID, rec); err != nil {
		r.logger.Error("append turn failed", "turn_id", rec.ID, "participant_id", rec.ParticipantID, "error", err)
		return
	}
	r.logger.Debug("turn recorded", "turn_id", rec.ID, "participant_id", rec.ParticipantID, "end_reason", rec.EndReason, "duration", rec.Duration)
}

func (r *sessionRunner) markCompleted(at time.Time) {
	r.mu.Lock()
	r.endedAt = at
	r.mu.Unlock()

	if r.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := r.directory.MarkCompleted(ctx, r.ctrl.SessionID(), at); err != nil {
		r.logger.Error("mark session completed failed", "error", err)
		return
	}
	r.logger.Info("session completed", "ended_at", at)
}

// Stop halts ticking and flushes queued events.
func (r *sessionRunner) Stop() {
	r.cancel()
	<-r.finished
}

// Finished is closed once every event, including the session end, has been
// delivered.
func (r *sessionRunner) Finished() <-chan struct{} {
	return r.finished
}

func (r *sessionRunner) EndedAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endedAt, !r.endedAt.IsZero()
}

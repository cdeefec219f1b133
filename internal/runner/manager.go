package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/floor"
)

type Deps struct {
	Directory  SessionDirectory
	Transcript TranscriptStore
	Notifier   Notifier
	Logger     *slog.Logger
}

type Options struct {
	Floor           floor.Config
	TickInterval    time.Duration
	RetainEnded     time.Duration
	CleanupInterval time.Duration
	Now             func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Floor:           floor.DefaultConfig(),
		TickInterval:    time.Second,
		RetainEnded:     time.Hour,
		CleanupInterval: 5 * time.Minute,
		Now:             time.Now,
	}
}

// SessionManager owns one runner per live session. Operations on different
// sessions never contend beyond the map lookup.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionRunner

	deps   Deps
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSessionManager(deps Deps, opts Options) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &SessionManager{
		sessions: make(map[string]*sessionRunner),
		deps:     deps,
		opts:     opts,
		logger:   deps.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	go m.cleanupLoop()

	return m
}

func (m *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupEndedSessions()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *SessionManager) cleanupEndedSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.opts.Now().Add(-m.opts.RetainEnded)

	for id, r := range m.sessions {
		endedAt, ended := r.EndedAt()
		if ended && endedAt.Before(cutoff) {
			delete(m.sessions, id)
			m.logger.Debug("released ended session", "session_id", id)
		}
	}
}

// StartSession takes a session live and begins arbitrating its floor.
func (m *SessionManager) StartSession(ctx context.Context, id string) (*domain.Session, error) {
	if _, exists := m.lookup(id); exists {
		return nil, domain.ErrAlreadyLive
	}

	s, err := m.deps.Directory.MarkLive(ctx, id, m.opts.Now())
	if errors.Is(err, domain.ErrInvalidTransition) {
		// An earlier start may have committed the phase and then failed to launch.
		if cur, gerr := m.deps.Directory.GetSession(ctx, id); gerr == nil && cur.Phase == domain.PhaseLive {
			s, err = cur, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := m.launch(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("session live", "session_id", s.ID, "duration", s.Duration, "live_start", s.LiveStart)
	return s, nil
}

// RecoverLive restarts arbitration for sessions persisted as live, e.g.
// after a restart. Bids and the in-progress turn are not recovered; sessions
// whose hard stop has passed complete on their first tick.
func (m *SessionManager) RecoverLive(ctx context.Context) (int, error) {
	live, err := m.deps.Directory.ListSessions(ctx, domain.SessionFilter{Phase: domain.PhaseLive})
	if err != nil {
		return 0, fmt.Errorf("list live sessions: %w", err)
	}

	recovered := 0
	for i := range live {
		s := &live[i]
		if _, exists := m.lookup(s.ID); exists {
			continue
		}
		if err := m.launch(ctx, s); err != nil {
			if errors.Is(err, domain.ErrAlreadyLive) {
				continue
			}
			return recovered, err
		}
		recovered++
		m.logger.Info("session recovered", "session_id", s.ID, "live_start", s.LiveStart)
	}
	return recovered, nil
}

func (m *SessionManager) launch(ctx context.Context, s *domain.Session) error {
	roster, err := m.deps.Directory.Roster(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	r := newSessionRunner(s, roster, m.opts.Floor, m.opts.TickInterval, m.deps)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return fmt.Errorf("launch session %s: manager closed", s.ID)
	}
	if _, exists := m.sessions[s.ID]; exists {
		return domain.ErrAlreadyLive
	}
	m.sessions[s.ID] = r
	r.Start()
	return nil
}

// runner resolves a session to its runner, or explains why it has none. A
// session persisted as live without a runner is launched on demand.
func (m *SessionManager) runner(ctx context.Context, id string) (*sessionRunner, error) {
	if r, ok := m.lookup(id); ok {
		return r, nil
	}

	s, err := m.deps.Directory.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	switch s.Phase {
	case domain.PhaseCompleted:
		return nil, domain.ErrSessionEnded
	case domain.PhaseLive:
		if err := m.launch(ctx, s); err != nil && !errors.Is(err, domain.ErrAlreadyLive) {
			return nil, err
		}
		m.logger.Warn("session relaunched", "session_id", s.ID, "live_start", s.LiveStart)
		if r, ok := m.lookup(id); ok {
			return r, nil
		}
	}
	return nil, domain.ErrNotLive
}

func (m *SessionManager) lookup(id string) (*sessionRunner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	return r, ok
}

func (m *SessionManager) SubmitUrgency(ctx context.Context, sessionID string, id domain.ParticipantID, score int) error {
	r, err := m.runner(ctx, sessionID)
	if err != nil {
		return err
	}
	return r.ctrl.SubmitUrgency(id, score, m.opts.Now())
}

func (m *SessionManager) SubmitMessage(ctx context.Context, sessionID string, id domain.ParticipantID, content string) (domain.TurnRecord, error) {
	r, err := m.runner(ctx, sessionID)
	if err != nil {
		return domain.TurnRecord{}, err
	}
	return r.ctrl.SubmitMessage(id, content, m.opts.Now())
}

func (m *SessionManager) YieldTurn(ctx context.Context, sessionID string, id domain.ParticipantID, remark string) (domain.TurnRecord, error) {
	r, err := m.runner(ctx, sessionID)
	if err != nil {
		return domain.TurnRecord{}, err
	}
	return r.ctrl.Yield(id, remark, m.opts.Now())
}

// HumanIntervene returns a nil record when the human turn is queued behind
// the current speaker.
func (m *SessionManager) HumanIntervene(ctx context.Context, sessionID, content string) (*domain.TurnRecord, error) {
	r, err := m.runner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return r.ctrl.HumanIntervene(content, m.opts.Now())
}

// Status never changes floor state. Sessions without a runner are described
// from their persisted record.
func (m *SessionManager) Status(ctx context.Context, sessionID string) (floor.Snapshot, error) {
	r, err := m.runner(ctx, sessionID)
	if err == nil {
		return r.ctrl.Status(m.opts.Now()), nil
	}
	if !errors.Is(err, domain.ErrNotLive) && !errors.Is(err, domain.ErrSessionEnded) {
		return floor.Snapshot{}, err
	}

	s, err := m.deps.Directory.GetSession(ctx, sessionID)
	if err != nil {
		return floor.Snapshot{}, err
	}
	snap := floor.Snapshot{
		SessionID: s.ID,
		Phase:     s.Phase,
	}
	if s.Phase == domain.PhaseCompleted {
		snap.Status = floor.StatusEnded
		snap.ClockPhase = domain.ClockEnded
		return snap, nil
	}
	snap.Status = floor.StatusIdle
	snap.RemainingSeconds = int(s.Duration / time.Second)
	snap.OverrideAvailable = true
	return snap, nil
}

// ActiveSessions counts sessions with a runner, ended ones included until
// they are cleaned up.
func (m *SessionManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every runner, flushing their queued events.
func (m *SessionManager) Close() {
	m.cancel()

	m.mu.Lock()
	runners := make([]*sessionRunner, 0, len(m.sessions))
	for _, r := range m.sessions {
		runners = append(runners, r)
	}
	m.sessions = make(map[string]*sessionRunner)
	m.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
}

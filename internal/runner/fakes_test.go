package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/floor"
	"github.com/hperssn/parlay/internal/runner"
)

type memDirectory struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	rosters   map[string][]domain.ParticipantID
	rosterErr error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		sessions: make(map[string]*domain.Session),
		rosters:  make(map[string][]domain.ParticipantID),
	}
}

func (d *memDirectory) add(id string, duration time.Duration, roster ...domain.ParticipantID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[id] = &domain.Session{ID: id, Duration: duration, Phase: domain.PhaseRegistrationOpen}
	d.rosters[id] = roster
}

func (d *memDirectory) GetSession(_ context.Context, id string) (*domain.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copy := *s
	return &copy, nil
}

func (d *memDirectory) ListSessions(_ context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.Session
	for _, s := range d.sessions {
		if filter.Phase == "" || s.Phase == filter.Phase {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (d *memDirectory) Roster(_ context.Context, sessionID string) ([]domain.ParticipantID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rosterErr != nil {
		return nil, d.rosterErr
	}
	return d.rosters[sessionID], nil
}

func (d *memDirectory) failRoster(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rosterErr = err
}

func (d *memDirectory) MarkLive(_ context.Context, id string, at time.Time) (*domain.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := s.Advance(domain.PhaseLive, at); err != nil {
		return nil, err
	}
	copy := *s
	return &copy, nil
}

func (d *memDirectory) MarkCompleted(_ context.Context, id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	return s.Advance(domain.PhaseCompleted, at)
}

func (d *memDirectory) phase(id string) domain.Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[id].Phase
}

type memTranscript struct {
	mu    sync.Mutex
	turns []domain.TurnRecord
}

func (m *memTranscript) AppendTurn(_ context.Context, _ string, rec domain.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, rec)
	return nil
}

func (m *memTranscript) all() []domain.TurnRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TurnRecord(nil), m.turns...)
}

type countingNotifier struct {
	mu     sync.Mutex
	counts map[floor.EventType]int
}

func (n *countingNotifier) Broadcast(_ string, ev floor.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.counts == nil {
		n.counts = make(map[floor.EventType]int)
	}
	n.counts[ev.Type]++
}

func (n *countingNotifier) count(typ floor.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[typ]
}

type harness struct {
	dir        *memDirectory
	transcript *memTranscript
	notifier   *countingNotifier
	manager    *runner.SessionManager
}

func newHarness(t *testing.T, mutate func(*runner.Options)) *harness {
	t.Helper()

	opts := runner.DefaultOptions()
	opts.TickInterval = 5 * time.Millisecond
	opts.Floor.TurnLimit = 80 * time.Millisecond
	opts.Floor.CollectionWindow = 0
	if mutate != nil {
		mutate(&opts)
	}

	h := &harness{
		dir:        newMemDirectory(),
		transcript: &memTranscript{},
		notifier:   &countingNotifier{},
	}
	h.manager = runner.NewSessionManager(runner.Deps{
		Directory:  h.dir,
		Transcript: h.transcript,
		Notifier:   h.notifier,
	}, opts)
	t.Cleanup(h.manager.Close)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

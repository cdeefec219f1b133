package floor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hperssn/parlay/internal/domain"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusSpeaking Status = "speaking"
	StatusEnded    Status = "ended"
)

const DefaultCollectionWindow = 3 * time.Second

// Config tunes one session's floor arbitration.
type Config struct {
	// TurnLimit bounds every turn; the session hard stop may cut it shorter.
	TurnLimit time.Duration
	// CollectionWindow is how long the floor stays free after a release
	// before the best bid is granted.
	CollectionWindow time.Duration
	// MaxContentLength limits message and remark length in runes. Zero disables it.
	MaxContentLength int
	Windows          domain.ClockWindows
}

func DefaultConfig() Config {
	return Config{
		TurnLimit:        domain.DefaultTurnLimit,
		CollectionWindow: DefaultCollectionWindow,
		MaxContentLength: 20000,
		Windows:          domain.DefaultClockWindows(),
	}
}

// Snapshot is a read-only view of a session's floor.
type Snapshot struct {
	SessionID         string               `json:"session_id"`
	Phase             domain.Phase         `json:"phase"`
	ClockPhase        domain.ClockPhase    `json:"clock_phase"`
	RemainingSeconds  int                  `json:"remaining_seconds"`
	Status            Status               `json:"status"`
	Holder            domain.ParticipantID `json:"current_holder,omitempty"`
	TurnStart         time.Time            `json:"turn_start,omitzero"`
	TurnDeadline      time.Time            `json:"turn_deadline,omitzero"`
	OverrideAvailable bool                 `json:"override_available"`
	OverridePending   bool                 `json:"override_pending"`
	PendingBids       int                  `json:"pending_bids"`
}

// Controller arbitrates the floor of a single live session. All methods are
// safe for concurrent use and are serialized by one mutex.
type Controller struct {
	mu sync.Mutex

	sessionID string
	cfg       Config
	clock     domain.Clock
	sink      Sink

	registry *Registry
	override Override

	phase        domain.Phase
	status       Status
	holder       domain.ParticipantID
	holderScore  int
	turnStart    time.Time
	turnDeadline time.Time
	collectUntil time.Time
	humanContent string
	clockPhase   domain.ClockPhase
	lastSeen     time.Time

	done chan struct{}
}

// NewController starts arbitration for a session that went live at liveStart.
// members is the frozen roster of registered participants.
func NewController(sessionID string, liveStart time.Time, duration time.Duration, members []domain.ParticipantID, cfg Config, sink Sink) *Controller {
	if sink == nil {
		sink = discardSink{}
	}
	if cfg.TurnLimit <= 0 {
		cfg.TurnLimit = domain.DefaultTurnLimit
	}
	if cfg.CollectionWindow < 0 {
		cfg.CollectionWindow = 0
	}
	return &Controller{
		sessionID:    sessionID,
		cfg:          cfg,
		clock:        domain.StartClock(liveStart, duration, cfg.Windows),
		sink:         sink,
		registry:     NewRegistry(members),
		phase:        domain.PhaseLive,
		status:       StatusIdle,
		collectUntil: liveStart.Add(cfg.CollectionWindow),
		done:         make(chan struct{}),
	}
}

func (c *Controller) SessionID() string { return c.sessionID }

// Done is closed once the session has ended.
func (c *Controller) Done() <-chan struct{} { return c.done }

// SubmitUrgency records a bid for the next grant.
func (c *Controller) SubmitUrgency(id domain.ParticipantID, score int, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now = c.observe(now)

	c.advance(now)
	if c.status == StatusEnded {
		return domain.ErrSessionEnded
	}
	if err := c.registry.Submit(id, score, now); err != nil {
		return err
	}
	c.publish(Event{Type: EventBidAccepted, At: now, Participant: id, Score: score})
	c.grant(now)
	return nil
}

// SubmitMessage ends the holder's turn with content.
func (c *Controller) SubmitMessage(id domain.ParticipantID, content string, now time.Time) (domain.TurnRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now = c.observe(now)

	if err := c.checkHolder(id, now); err != nil {
		return domain.TurnRecord{}, err
	}
	if err := domain.ValidateContent(content, c.cfg.MaxContentLength); err != nil {
		return domain.TurnRecord{}, err
	}
	rec := c.release(domain.EndCompleted, content, false, now)
	c.grant(now)
	return rec, nil
}

// HumanIntervene arms the human override with content. When the floor is
// free the human turn happens immediately and its record is returned;
// otherwise the record is nil and the turn follows the current one.
func (c *Controller) HumanIntervene(content string, now time.Time) (*domain.TurnRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now = c.observe(now)

	c.advance(now)
	if c.status == StatusEnded {
		return nil, domain.ErrSessionEnded
	}
	if err := domain.ValidateContent(content, c.cfg.MaxContentLength); err != nil {
		return nil, err
	}
	if err := c.override.Arm(); err != nil {
		return nil, err
	}
	c.humanContent = content
	c.publish(Event{Type: EventOverrideArmed, At: now, Participant: domain.HumanObserver})
	return c.grant(now), nil
}

// Tick applies every transition that is due at now: turn timeouts, the hard
// stop, phase changes and grants whose collection window has elapsed.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now = c.observe(now)
	c.advance(now)
}

// Status reports the floor without changing it. A hard stop that no
// operation has observed yet is already reflected as ended.
func (c *Controller) Status(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID:         c.sessionID,
		Phase:             c.phase,
		ClockPhase:        c.clock.PhaseFor(now),
		RemainingSeconds:  c.clock.RemainingSeconds(now),
		Status:            c.status,
		Holder:            c.holder,
		TurnStart:         c.turnStart,
		TurnDeadline:      c.turnDeadline,
		OverrideAvailable: c.override.Available(),
		OverridePending:   c.override.Armed(),
		PendingBids:       c.registry.Len(),
	}
	if c.status == StatusSpeaking && !now.Before(c.turnDeadline) {
		snap.Status = StatusIdle
		snap.Holder = ""
		snap.TurnStart = time.Time{}
		snap.TurnDeadline = time.Time{}
	}
	if c.clock.IsHardStopped(now) {
		snap.Phase = domain.PhaseCompleted
		snap.Status = StatusEnded
		snap.Holder = ""
		snap.TurnStart = time.Time{}
		snap.TurnDeadline = time.Time{}
	}
	return snap
}

// observe keeps the controller's notion of time monotonic. Callers sample
// the clock before taking the lock, so a request may carry a time earlier
// than one already applied.
func (c *Controller) observe(now time.Time) time.Time {
	if now.Before(c.lastSeen) {
		return c.lastSeen
	}
	c.lastSeen = now
	return now
}

func (c *Controller) checkHolder(id domain.ParticipantID, now time.Time) error {
	c.advance(now)
	if c.status == StatusEnded {
		return domain.ErrSessionEnded
	}
	if c.status != StatusSpeaking || c.holder != id {
		return domain.ErrNotFloorHolder
	}
	return nil
}

func (c *Controller) advance(now time.Time) {
	if c.status == StatusEnded {
		return
	}

	if c.status == StatusSpeaking && !now.Before(c.turnDeadline) {
		reason := domain.EndTimeout
		if c.turnDeadline.Equal(c.clock.HardStop()) {
			reason = domain.EndHardStop
		}
		c.release(reason, "", false, c.turnDeadline)
	}

	if p := c.clock.PhaseFor(now); p != c.clockPhase {
		c.clockPhase = p
		c.publish(Event{Type: EventPhaseChanged, At: now, Phase: p})
	}

	if c.clock.IsHardStopped(now) {
		c.end()
		return
	}
	c.grant(now)
}

// grant hands a free floor to the armed human override, or to the best bid
// once the collection window has passed. The human turn completes at once
// and its record is returned.
func (c *Controller) grant(now time.Time) *domain.TurnRecord {
	if c.status != StatusIdle {
		return nil
	}

	if id, ok := c.override.TakeIfArmed(); ok {
		c.registry.Clear()
		c.assign(id, domain.HumanUrgency, now)
		content := c.humanContent
		c.humanContent = ""
		rec := c.release(domain.EndCompleted, content, false, now)
		return &rec
	}

	if now.Before(c.collectUntil) {
		return nil
	}
	bid, ok := c.registry.Winner()
	if !ok {
		return nil
	}
	c.registry.Clear()
	c.assign(bid.ParticipantID, bid.Score, now)
	return nil
}

func (c *Controller) assign(id domain.ParticipantID, score int, now time.Time) {
	deadline := now.Add(c.cfg.TurnLimit)
	if stop := c.clock.HardStop(); deadline.After(stop) {
		deadline = stop
	}
	c.status = StatusSpeaking
	c.holder = id
	c.holderScore = score
	c.turnStart = now
	c.turnDeadline = deadline
	c.registry.setSpeaker(id)
	c.publish(Event{Type: EventFloorGranted, At: now, Participant: id, Score: score, Deadline: deadline})
}

// release ends the current turn at end, kept within [turnStart, turnDeadline].
func (c *Controller) release(reason domain.EndReason, content string, isYield bool, end time.Time) domain.TurnRecord {
	if end.After(c.turnDeadline) {
		end = c.turnDeadline
	}
	if end.Before(c.turnStart) {
		end = c.turnStart
	}
	rec := domain.TurnRecord{
		ID:            uuid.New().String(),
		SessionID:     c.sessionID,
		ParticipantID: c.holder,
		Content:       content,
		UrgencyScore:  c.holderScore,
		IsYield:       isYield,
		StartedAt:     c.turnStart,
		Duration:      end.Sub(c.turnStart),
		EndReason:     reason,
	}

	c.status = StatusIdle
	c.holder = ""
	c.holderScore = 0
	c.turnStart = time.Time{}
	c.turnDeadline = time.Time{}
	c.registry.setSpeaker("")
	c.collectUntil = end.Add(c.cfg.CollectionWindow)

	c.publish(Event{Type: EventTurnEnded, At: end, Participant: rec.ParticipantID, Turn: &rec})
	return rec
}

func (c *Controller) end() {
	c.status = StatusEnded
	c.phase = domain.PhaseCompleted
	c.registry.Clear()
	c.humanContent = ""
	c.publish(Event{Type: EventSessionEnded, At: c.clock.HardStop()})
	close(c.done)
}

func (c *Controller) publish(ev Event) {
	ev.SessionID = c.sessionID
	c.sink.Publish(ev)
}

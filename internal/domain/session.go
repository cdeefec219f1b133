package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseScheduled        Phase = "scheduled"
	PhaseRegistrationOpen Phase = "registration_open"
	PhaseLive             Phase = "live"
	PhaseCompleted        Phase = "completed"
)

var phaseOrder = []Phase{PhaseScheduled, PhaseRegistrationOpen, PhaseLive, PhaseCompleted}

func phaseIndex(p Phase) int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// ParsePhase accepts the lowercase phase names used on the wire.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	return p, phaseIndex(p) >= 0
}

// CanAdvanceTo reports whether next is the phase immediately after p.
func (p Phase) CanAdvanceTo(next Phase) bool {
	cur := phaseIndex(p)
	return cur >= 0 && phaseIndex(next) == cur+1
}

const (
	DefaultSessionDuration = 60 * time.Minute
	DefaultMaxParticipants = 6
)

type Session struct {
	ID               string
	Title            string
	TopicCategory    string
	TopicSubcategory string
	FramingPrompt    string
	ScheduledAt      time.Time
	Duration         time.Duration
	MaxParticipants  int
	Phase            Phase
	LiveStart        time.Time
	EndedAt          time.Time
	CreatedAt        time.Time
	CreatedBy        string
}

// SessionDraft holds the caller-supplied fields of a new session.
type SessionDraft struct {
	Title            string
	TopicCategory    string
	TopicSubcategory string
	FramingPrompt    string
	ScheduledAt      time.Time
	Duration         time.Duration
	MaxParticipants  int
	CreatedBy        string
}

// NewSession validates d and returns a session that is open for registration.
func NewSession(id string, d SessionDraft, now time.Time) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	}

	title := strings.TrimSpace(d.Title)
	category := strings.TrimSpace(d.TopicCategory)
	prompt := strings.TrimSpace(d.FramingPrompt)
	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSession)
	case category == "":
		return nil, fmt.Errorf("%w: topic category is required", ErrInvalidSession)
	case prompt == "":
		return nil, fmt.Errorf("%w: framing prompt is required", ErrInvalidSession)
	case d.Duration < 0:
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidSession)
	case d.MaxParticipants < 0:
		return nil, fmt.Errorf("%w: max participants must be positive", ErrInvalidSession)
	}

	duration := d.Duration
	if duration == 0 {
		duration = DefaultSessionDuration
	}
	maxParticipants := d.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = DefaultMaxParticipants
	}
	createdBy := strings.TrimSpace(d.CreatedBy)
	if createdBy == "" {
		createdBy = "human"
	}
	scheduled := d.ScheduledAt
	if scheduled.IsZero() {
		scheduled = now
	}

	s := &Session{
		ID:               id,
		Title:            title,
		TopicCategory:    category,
		TopicSubcategory: strings.TrimSpace(d.TopicSubcategory),
		FramingPrompt:    prompt,
		ScheduledAt:      scheduled.UTC(),
		Duration:         duration,
		MaxParticipants:  maxParticipants,
		Phase:            PhaseScheduled,
		CreatedAt:        now.UTC(),
		CreatedBy:        createdBy,
	}
	if err := s.Advance(PhaseRegistrationOpen, now); err != nil {
		return nil, err
	}
	return s, nil
}

// Advance moves the session one phase forward. LiveStart and EndedAt are
// stamped the first time their phase is entered.
func (s *Session) Advance(next Phase, at time.Time) error {
	if !s.Phase.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, next)
	}
	s.Phase = next
	switch next {
	case PhaseLive:
		s.LiveStart = at.UTC()
	case PhaseCompleted:
		s.EndedAt = at.UTC()
	}
	return nil
}

// HardStop is the absolute end of the live discussion. Zero before going live.
func (s *Session) HardStop() time.Time {
	if s.LiveStart.IsZero() {
		return time.Time{}
	}
	return s.LiveStart.Add(s.Duration)
}

// AcceptsRegistrations reports whether bots may still sign up.
func (s *Session) AcceptsRegistrations() bool {
	return s.Phase == PhaseScheduled || s.Phase == PhaseRegistrationOpen
}

// SessionFilter narrows session listings. Zero fields match everything.
type SessionFilter struct {
	Phase    Phase
	Category string
}

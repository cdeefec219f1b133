package floor

import (
	"time"

	"github.com/hperssn/parlay/internal/domain"
)

type EventType string

const (
	EventBidAccepted   EventType = "bid_accepted"
	EventFloorGranted  EventType = "floor_granted"
	EventTurnEnded     EventType = "turn_ended"
	EventOverrideArmed EventType = "override_armed"
	EventPhaseChanged  EventType = "phase_changed"
	EventSessionEnded  EventType = "session_ended"
)

// Event describes one floor transition. Only the fields relevant to Type are set.
type Event struct {
	Type        EventType            `json:"type"`
	SessionID   string               `json:"session_id"`
	At          time.Time            `json:"at"`
	Participant domain.ParticipantID `json:"participant_id,omitempty"`
	Score       int                  `json:"score,omitempty"`
	Deadline    time.Time            `json:"deadline,omitzero"`
	Phase       domain.ClockPhase    `json:"phase,omitempty"`
	Turn        *domain.TurnRecord   `json:"turn,omitempty"`
}

// Sink receives events while the Controller holds its lock. Publish must
// not block.
type Sink interface {
	Publish(Event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}

package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinUrgency = 1
	MaxUrgency = 100

	// HumanUrgency is recorded for turns granted through the human override.
	HumanUrgency = MaxUrgency

	// DefaultTurnLimit bounds a single turn.
	DefaultTurnLimit = 7 * time.Minute
)

type UrgencyBid struct {
	ParticipantID ParticipantID
	Score         int
	SubmittedAt   time.Time
}

// ValidateUrgency rejects scores outside [MinUrgency, MaxUrgency]. Scores are
// never clamped.
func ValidateUrgency(score int) error {
	if score < MinUrgency || score > MaxUrgency {
		return fmt.Errorf("%w: got %d", ErrOutOfRange, score)
	}
	return nil
}

// ValidateContent rejects blank content and content longer than maxRunes.
// A non-positive maxRunes disables the length check.
func ValidateContent(content string, maxRunes int) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidContent)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: content is not valid utf-8", ErrInvalidContent)
	}
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidContent, maxRunes)
	}
	return nil
}

type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndYielded   EndReason = "yielded"
	EndTimeout   EndReason = "timeout"
	EndHardStop  EndReason = "hard_stop"
)

// TurnRecord is the immutable account of one finished turn.
type TurnRecord struct {
	ID            string
	SessionID     string
	ParticipantID ParticipantID
	Content       string
	UrgencyScore  int
	IsYield       bool
	StartedAt     time.Time
	Duration      time.Duration
	EndReason     EndReason

	// SpeakerName is a display label filled in by readers; it is not stored.
	SpeakerName string
}

func (r TurnRecord) EndedAt() time.Time {
	return r.StartedAt.Add(r.Duration)
}

func (r TurnRecord) IsHuman() bool {
	return r.ParticipantID == HumanObserver
}

// Speaker returns the display name of the turn's participant. Bot names come
// from names; human turns are always labelled HumanObserverName.
func (r TurnRecord) Speaker(names map[ParticipantID]string) string {
	if r.IsHuman() {
		return HumanObserverName
	}
	if r.SpeakerName != "" {
		return r.SpeakerName
	}
	return names[r.ParticipantID]
}

type turnRecordJSON struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"session_id"`
	ParticipantID   ParticipantID `json:"participant_id"`
	SpeakerName     string        `json:"bot_name,omitempty"`
	Content         string        `json:"content"`
	UrgencyScore    int           `json:"urgency_score"`
	IsYield         bool          `json:"is_yield"`
	IsHuman         bool          `json:"is_human"`
	StartedAt       time.Time     `json:"started_at"`
	DurationSeconds float64       `json:"duration_seconds"`
	EndReason       EndReason     `json:"end_reason"`
}

func (r TurnRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(turnRecordJSON{
		ID:              r.ID,
		SessionID:       r.SessionID,
		ParticipantID:   r.ParticipantID,
		SpeakerName:     r.Speaker(nil),
		Content:         r.Content,
		UrgencyScore:    r.UrgencyScore,
		IsYield:         r.IsYield,
		IsHuman:         r.IsHuman(),
		StartedAt:       r.StartedAt,
		DurationSeconds: r.Duration.Seconds(),
		EndReason:       r.EndReason,
	})
}

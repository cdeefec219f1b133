package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParticipantID is an opaque participant key. Bots use their bot id.
type ParticipantID string

// HumanObserver is the pseudo-participant granted the floor by the human override.
const HumanObserver ParticipantID = "human-observer"

const HumanObserverName = "Human Observer"

type Bot struct {
	ID             string
	Name           string
	ModelType      string
	Specialization string
	APIEndpoint    string
	CreatedAt      time.Time
}

func NewBot(name, modelType, specialization, apiEndpoint string, now time.Time) (*Bot, error) {
	name = strings.TrimSpace(name)
	modelType = strings.TrimSpace(modelType)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidBot)
	}
	if modelType == "" {
		return nil, fmt.Errorf("%w: model type is required", ErrInvalidBot)
	}
	return &Bot{
		ID:             uuid.New().String(),
		Name:           name,
		ModelType:      modelType,
		Specialization: strings.TrimSpace(specialization),
		APIEndpoint:    strings.TrimSpace(apiEndpoint),
		CreatedAt:      now.UTC(),
	}, nil
}

// Participant returns the key the floor engine knows this bot by.
func (b *Bot) Participant() ParticipantID {
	return ParticipantID(b.ID)
}

type Registration struct {
	ID                string
	SessionID         string
	BotID             string
	BotName           string
	InterestStatement string
	RegisteredAt      time.Time
}

func NewRegistration(sessionID, botID, interest string, now time.Time) *Registration {
	return &Registration{
		ID:                uuid.New().String(),
		SessionID:         sessionID,
		BotID:             botID,
		InterestStatement: strings.TrimSpace(interest),
		RegisteredAt:      now.UTC(),
	}
}

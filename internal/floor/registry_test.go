package floor

import (
	"errors"
	"testing"
	"time"

	"github.com/hperssn/parlay/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func TestRegistryWinnerHighestScore(t *testing.T) {
	r := NewRegistry([]domain.ParticipantID{"A", "B", "C"})

	for id, score := range map[domain.ParticipantID]int{"A": 75, "B": 92, "C": 60} {
		if err := r.Submit(id, score, t0); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	bid, ok := r.Winner()
	if !ok {
		t.Fatalf("expected a winner")
	}
	if bid.ParticipantID != "B" || bid.Score != 92 {
		t.Fatalf("winner = %+v, want B:92", bid)
	}
}

func TestRegistryTieGoesToEarliest(t *testing.T) {
	r := NewRegistry([]domain.ParticipantID{"A", "B"})

	if err := r.Submit("B", 80, t0.Add(2*time.Second)); err != nil {
		t.Fatalf("submit B: %v", err)
	}
	if err := r.Submit("A", 80, t0.Add(time.Second)); err != nil {
		t.Fatalf("submit A: %v", err)
	}

	bid, _ := r.Winner()
	if bid.ParticipantID != "A" {
		t.Fatalf("winner = %s, want A", bid.ParticipantID)
	}
}

func TestRegistryTieSameInstantIsStable(t *testing.T) {
	r := NewRegistry([]domain.ParticipantID{"A", "B"})
	_ = r.Submit("B", 80, t0)
	_ = r.Submit("A", 80, t0)

	for i := 0; i < 20; i++ {
		bid, _ := r.Winner()
		if bid.ParticipantID != "A" {
			t.Fatalf("winner = %s, want A on every call", bid.ParticipantID)
		}
	}
}

func TestRegistryResubmitOverwrites(t *testing.T) {
	r := NewRegistry([]domain.ParticipantID{"A", "B"})
	_ = r.Submit("A", 90, t0)
	_ = r.Submit("B", 50, t0.Add(time.Second))
	_ = r.Submit("A", 10, t0.Add(2*time.Second))

	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
	bid, _ := r.Winner()
	if bid.ParticipantID != "B" {
		t.Fatalf("winner = %s, want B after A lowered its bid", bid.ParticipantID)
	}
}

func TestRegistryRejections(t *testing.T) {
	r := NewRegistry([]domain.ParticipantID{"A", "B"})
	r.setSpeaker("A")

	tests := []struct {
		name  string
		id    domain.ParticipantID
		score int
		want  error
	}{
		{"zero score", "B", 0, domain.ErrOutOfRange},
		{"score above range", "B", 101, domain.ErrOutOfRange},
		{"stranger", "Z", 50, domain.ErrNotRegistered},
		{"current speaker", "A", 50, domain.ErrAlreadySpeaking},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Submit(tt.id, tt.score, t0); !errors.Is(err, tt.want) {
				t.Fatalf("Submit = %v, want %v", err, tt.want)
			}
		})
	}
	if r.Len() != 0 {
		t.Fatalf("rejected bids must not be stored, len = %d", r.Len())
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry([]domain.ParticipantID{"A"})
	_ = r.Submit("A", 40, t0)
	r.Clear()

	if _, ok := r.Winner(); ok {
		t.Fatalf("expected no winner after clear")
	}
}

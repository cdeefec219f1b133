package httpapi_test

import (
	"testing"
	"time"

	"github.com/hperssn/parlay/internal/floor"
	httpapi "github.com/hperssn/parlay/internal/http"
)

func TestHubDeliversPerSession(t *testing.T) {
	hub := httpapi.NewHub(4, nil)

	a, cancelA := hub.Subscribe("s1")
	defer cancelA()
	b, cancelB := hub.Subscribe("s2")
	defer cancelB()

	hub.Broadcast("s1", floor.Event{Type: floor.EventFloorGranted, SessionID: "s1", Participant: "bot-a"})

	select {
	case ev := <-a:
		if ev.Type != floor.EventFloorGranted || ev.Participant != "bot-a" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("s1 viewer got nothing")
	}

	select {
	case ev := <-b:
		t.Fatalf("s2 viewer should not see s1 events, got %+v", ev)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := httpapi.NewHub(1, nil)

	ch, cancel := hub.Subscribe("s1")
	if n := hub.Subscribers("s1"); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if n := hub.Subscribers("s1"); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}

	// broadcasting to a session nobody watches is a no-op
	hub.Broadcast("s1", floor.Event{Type: floor.EventTurnEnded})
}

func TestHubDropsForSlowViewer(t *testing.T) {
	hub := httpapi.NewHub(1, nil)

	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Broadcast("s1", floor.Event{Type: floor.EventBidAccepted, Score: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full viewer")
	}

	ev := <-ch
	if ev.Score != 0 {
		t.Fatalf("first buffered event score = %d, want 0", ev.Score)
	}
}

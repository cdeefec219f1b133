package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/floor"
	httpapi "github.com/hperssn/parlay/internal/http"
)

type stubSessions map[string]*domain.Session

func (s stubSessions) GetSession(_ context.Context, id string) (*domain.Session, error) {
	sess, ok := s[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func newStreamServer(t *testing.T, hub *httpapi.Hub) *httptest.Server {
	t.Helper()
	sessions := stubSessions{
		"live": {ID: "live", Phase: domain.PhaseLive},
		"done": {ID: "done", Phase: domain.PhaseCompleted},
	}
	r := chi.NewRouter()
	r.Get("/sessions/{id}/events", httpapi.StreamSessionEvents(hub, sessions))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamRejectsUnknownAndEnded(t *testing.T) {
	srv := newStreamServer(t, httpapi.NewHub(0, nil))

	tests := []struct {
		id   string
		want int
	}{
		{"missing", http.StatusNotFound},
		{"done", http.StatusConflict},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + "/sessions/" + tt.id + "/events")
		if err != nil {
			t.Fatalf("get %s: %v", tt.id, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.id, resp.StatusCode, tt.want)
		}
	}
}

func TestStreamForwardsEventsUntilSessionEnds(t *testing.T) {
	hub := httpapi.NewHub(0, nil)
	srv := newStreamServer(t, hub)

	resp, err := http.Get(srv.URL + "/sessions/live/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("live") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("viewer never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast("live", floor.Event{Type: floor.EventFloorGranted, SessionID: "live", Participant: "bot-a", Score: 92})
	hub.Broadcast("live", floor.Event{Type: floor.EventSessionEnded, SessionID: "live"})

	var got []floor.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev floor.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode %q: %v", payload, err)
		}
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Type != floor.EventFloorGranted || got[0].Participant != "bot-a" || got[0].Score != 92 {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[1].Type != floor.EventSessionEnded {
		t.Fatalf("second event = %+v", got[1])
	}

	deadline = time.Now().Add(2 * time.Second)
	for hub.Subscribers("live") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("viewer not released after stream closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/floor"
)

const heartbeatInterval = 15 * time.Second

// SessionLookup resolves the session a viewer asks to watch.
type SessionLookup interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
}

// StreamSessionEvents streams a session's floor events as server-sent
// events until the session ends or the viewer disconnects.
func StreamSessionEvents(hub *Hub, sessions SessionLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		s, err := sessions.GetSession(r.Context(), id)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "failed to load session", http.StatusInternalServerError)
			return
		case s.Phase == domain.PhaseCompleted:
			http.Error(w, "session has ended", http.StatusConflict)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		events, cancel := hub.Subscribe(id)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					return
				}
				flusher.Flush()
				if ev.Type == floor.EventSessionEnded {
					return
				}

			case <-heartbeat.C:
				if _, err := w.Write([]byte(": ping\n\n")); err != nil {
					return
				}
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev floor.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

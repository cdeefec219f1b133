package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hperssn/parlay/internal/domain"
)

type contextKey string

const ParticipantIDKey contextKey = "participantId"

// ExtractParticipantMiddleware identifies the bot acting on a session. Bots
// send X-Participant-ID; a proxy-authenticated user header is accepted too.
func ExtractParticipantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Participant-ID"))

		if id == "" {
			id = strings.TrimSpace(r.Header.Get("X-Auth-User"))
		}
		if id == "" {
			id = strings.TrimSpace(r.Header.Get("X-Forwarded-User"))
		}

		if id == "" {
			slog.Debug("participant header missing", "path", r.URL.Path)
			respondError(w, "participant id required", codeParticipantRequired, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ParticipantIDKey, domain.ParticipantID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetParticipantID(r *http.Request) domain.ParticipantID {
	id, ok := r.Context().Value(ParticipantIDKey).(domain.ParticipantID)
	if !ok {
		return ""
	}
	return id
}

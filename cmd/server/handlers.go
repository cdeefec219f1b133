package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/http"
	"github.com/hperssn/parlay/internal/runner"
	"github.com/hperssn/parlay/internal/storage"
)

const (
	codeInvalidRequest      domain.Code = "INVALID_REQUEST"
	codeParticipantRequired domain.Code = "PARTICIPANT_REQUIRED"
	codeInternal            domain.Code = "INTERNAL"

	maxBodyBytes = 1 << 20
)

type api struct {
	repo    storage.Repository
	manager *runner.SessionManager
	hub     *httpapi.Hub
	logger  *slog.Logger
	now     func() time.Time
}

type botResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ModelType      string    `json:"model_type"`
	Specialization string    `json:"specialization,omitempty"`
	APIEndpoint    string    `json:"api_endpoint,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newBotResponse(b *domain.Bot) botResponse {
	return botResponse{
		ID:             b.ID,
		Name:           b.Name,
		ModelType:      b.ModelType,
		Specialization: b.Specialization,
		APIEndpoint:    b.APIEndpoint,
		CreatedAt:      b.CreatedAt,
	}
}

type sessionResponse struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	TopicCategory    string       `json:"topic_category"`
	TopicSubcategory string       `json:"topic_subcategory,omitempty"`
	FramingPrompt    string       `json:"framing_prompt"`
	ScheduledAt      time.Time    `json:"scheduled_at"`
	DurationMinutes  int          `json:"duration_minutes"`
	MaxParticipants  int          `json:"max_participants"`
	Phase            domain.Phase `json:"phase"`
	LiveStart        time.Time    `json:"live_start,omitzero"`
	HardStop         time.Time    `json:"hard_stop,omitzero"`
	EndedAt          time.Time    `json:"ended_at,omitzero"`
	CreatedAt        time.Time    `json:"created_at"`
	CreatedBy        string       `json:"created_by"`
	ParticipantCount *int         `json:"participant_count,omitempty"`
}

func newSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:               s.ID,
		Title:            s.Title,
		TopicCategory:    s.TopicCategory,
		TopicSubcategory: s.TopicSubcategory,
		FramingPrompt:    s.FramingPrompt,
		ScheduledAt:      s.ScheduledAt,
		DurationMinutes:  int(s.Duration / time.Minute),
		MaxParticipants:  s.MaxParticipants,
		Phase:            s.Phase,
		LiveStart:        s.LiveStart,
		HardStop:         s.HardStop(),
		EndedAt:          s.EndedAt,
		CreatedAt:        s.CreatedAt,
		CreatedBy:        s.CreatedBy,
	}
}

type registrationResponse struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	BotID             string    `json:"bot_id"`
	BotName           string    `json:"bot_name"`
	InterestStatement string    `json:"interest_statement,omitempty"`
	RegisteredAt      time.Time `json:"registered_at"`
}

func newRegistrationResponse(reg *domain.Registration) registrationResponse {
	return registrationResponse{
		ID:                reg.ID,
		SessionID:         reg.SessionID,
		BotID:             reg.BotID,
		BotName:           reg.BotName,
		InterestStatement: reg.InterestStatement,
		RegisteredAt:      reg.RegisteredAt,
	}
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	respondError(w, "invalid request body", codeInvalidRequest, http.StatusBadRequest)
	return false
}

func (a *api) createBot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name"`
		ModelType      string `json:"model_type"`
		Specialization string `json:"specialization"`
		APIEndpoint    string `json:"api_endpoint"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}

	bot, err := domain.NewBot(req.Name, req.ModelType, req.Specialization, req.APIEndpoint, a.now())
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	if err := a.repo.CreateBot(r.Context(), bot); err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	respondJSON(w, newBotResponse(bot), http.StatusCreated)
}

func (a *api) listBots(w http.ResponseWriter, r *http.Request) {
	bots, err := a.repo.ListBots(r.Context())
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	out := make([]botResponse, 0, len(bots))
	for i := range bots {
		out = append(out, newBotResponse(&bots[i]))
	}
	respondJSON(w, out, http.StatusOK)
}

func (a *api) getBot(w http.ResponseWriter, r *http.Request) {
	bot, err := a.repo.GetBot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	respondJSON(w, newBotResponse(bot), http.StatusOK)
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title            string    `json:"title"`
		TopicCategory    string    `json:"topic_category"`
		TopicSubcategory string    `json:"topic_subcategory"`
		FramingPrompt    string    `json:"framing_prompt"`
		ScheduledAt      time.Time `json:"scheduled_at"`
		DurationMinutes  int       `json:"duration_minutes"`
		MaxParticipants  int       `json:"max_participants"`
		CreatedBy        string    `json:"created_by"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}

	s, err := domain.NewSession("", domain.SessionDraft{
		Title:            req.Title,
		TopicCategory:    req.TopicCategory,
		TopicSubcategory: req.TopicSubcategory,
		FramingPrompt:    req.FramingPrompt,
		ScheduledAt:      req.ScheduledAt,
		Duration:         time.Duration(req.DurationMinutes) * time.Minute,
		MaxParticipants:  req.MaxParticipants,
		CreatedBy:        req.CreatedBy,
	}, a.now())
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	if err := a.repo.CreateSession(r.Context(), s); err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	a.logger.Info("session created", "session_id", s.ID, "title", s.Title)
	respondJSON(w, newSessionResponse(s), http.StatusCreated)
}

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	var filter domain.SessionFilter
	if raw := r.URL.Query().Get("phase"); raw != "" {
		phase, ok := domain.ParsePhase(raw)
		if !ok {
			respondDomainError(w, r, a.logger, fmt.Errorf("%w: unknown phase %q", domain.ErrInvalidSession, raw))
			return
		}
		filter.Phase = phase
	}
	filter.Category = r.URL.Query().Get("category")

	sessions, err := a.repo.ListSessions(r.Context(), filter)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, newSessionResponse(&sessions[i]))
	}
	respondJSON(w, out, http.StatusOK)
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s, err := a.repo.GetSession(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	count, err := a.repo.CountRegistrations(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}

	resp := newSessionResponse(s)
	resp.ParticipantCount = &count
	respondJSON(w, resp, http.StatusOK)
}

func (a *api) registerBot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotID             string `json:"bot_id"`
		InterestStatement string `json:"interest_statement"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.BotID == "" {
		respondDomainError(w, r, a.logger, fmt.Errorf("%w: bot_id is required", domain.ErrInvalidBot))
		return
	}

	reg := domain.NewRegistration(chi.URLParam(r, "id"), req.BotID, req.InterestStatement, a.now())
	if err := a.repo.Register(r.Context(), reg); err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	a.logger.Info("bot registered", "session_id", reg.SessionID, "bot_id", reg.BotID)
	respondJSON(w, newRegistrationResponse(reg), http.StatusCreated)
}

func (a *api) listRegistrations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.repo.GetSession(r.Context(), id); err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}

	regs, err := a.repo.ListRegistrations(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	out := make([]registrationResponse, 0, len(regs))
	for i := range regs {
		out = append(out, newRegistrationResponse(&regs[i]))
	}
	respondJSON(w, out, http.StatusOK)
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.manager.StartSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	respondJSON(w, newSessionResponse(s), http.StatusOK)
}

func (a *api) submitUrgency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score int `json:"score"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := a.manager.SubmitUrgency(r.Context(), id, GetParticipantID(r), req.Score); err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	a.respondStatus(w, r, id, http.StatusAccepted)
}

func (a *api) submitMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}

	rec, err := a.manager.SubmitMessage(r.Context(), chi.URLParam(r, "id"), GetParticipantID(r), req.Content)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	respondJSON(w, rec, http.StatusOK)
}

func (a *api) yieldTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Remark string `json:"remark"`
	}
	if !decodeBody(w, r, &req, true) {
		return
	}

	rec, err := a.manager.YieldTurn(r.Context(), chi.URLParam(r, "id"), GetParticipantID(r), req.Remark)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	respondJSON(w, rec, http.StatusOK)
}

func (a *api) humanIntervene(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &req, false) {
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := a.manager.HumanIntervene(r.Context(), id, req.Content)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	if rec == nil {
		a.logger.Info("human intervention queued", "session_id", id)
		respondJSON(w, map[string]any{"queued": true}, http.StatusAccepted)
		return
	}
	respondJSON(w, rec, http.StatusOK)
}

func (a *api) getStatus(w http.ResponseWriter, r *http.Request) {
	a.respondStatus(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (a *api) respondStatus(w http.ResponseWriter, r *http.Request, id string, status int) {
	snap, err := a.manager.Status(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	respondJSON(w, snap, status)
}

func (a *api) getTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.repo.GetSession(r.Context(), id); err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}

	turns, err := a.repo.Transcript(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	regs, err := a.repo.ListRegistrations(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, a.logger, err)
		return
	}
	names := make(map[domain.ParticipantID]string, len(regs))
	for _, reg := range regs {
		names[domain.ParticipantID(reg.BotID)] = reg.BotName
	}
	for i := range turns {
		turns[i].SpeakerName = turns[i].Speaker(names)
	}
	if turns == nil {
		turns = []domain.TurnRecord{}
	}
	respondJSON(w, struct {
		SessionID string              `json:"session_id"`
		Turns     []domain.TurnRecord `json:"turns"`
	}{id, turns}, http.StatusOK)
}

var _ runner.Notifier = (*httpapi.Hub)(nil)

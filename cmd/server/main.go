package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/parlay/internal/config"
	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/http"
	"github.com/hperssn/parlay/internal/logging"
	"github.com/hperssn/parlay/internal/runner"
	"github.com/hperssn/parlay/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	hub := httpapi.NewHub(0, logger)
	manager := runner.NewSessionManager(runner.Deps{
		Directory:  repo,
		Transcript: repo,
		Notifier:   hub,
		Logger:     logger,
	}, cfg.RunnerOptions())
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recovered, err := manager.RecoverLive(ctx)
	if err != nil {
		return fmt.Errorf("recover live sessions: %w", err)
	}
	if recovered > 0 {
		logger.Info("recovered live sessions", "count", recovered)
	}

	a := &api{repo: repo, manager: manager, hub: hub, logger: logger, now: time.Now}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "db_driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRepository(cfg config.Config) (storage.Repository, error) {
	switch strings.ToLower(cfg.DBDriver) {
	case "postgres":
		return storage.NewPostgresRepository(cfg.DBDSN)
	default:
		return storage.NewSQLiteRepository(cfg.DBDSN)
	}
}

func newRouter(a *api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/bots", a.createBot)
		r.Get("/bots", a.listBots)
		r.Get("/bots/{id}", a.getBot)

		r.Post("/sessions", a.createSession)
		r.Get("/sessions", a.listSessions)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Post("/register", a.registerBot)
			r.Get("/registrations", a.listRegistrations)
			r.Post("/start", a.startSession)
			r.Post("/intervene", a.humanIntervene)
			r.Get("/status", a.getStatus)
			r.Get("/transcript", a.getTranscript)
			r.Get("/events", httpapi.StreamSessionEvents(a.hub, a.repo))

			r.Group(func(r chi.Router) {
				r.Use(ExtractParticipantMiddleware)
				r.Post("/urgency", a.submitUrgency)
				r.Post("/message", a.submitMessage)
				r.Post("/yield", a.yieldTurn)
			})
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, code domain.Code, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": string(code)})
}

// respondDomainError maps err's kind to an HTTP status. Errors outside the
// domain taxonomy are logged and reported as internal.
func respondDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var status int
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindState:
		status = http.StatusConflict
	case domain.KindNotFound:
		status = http.StatusNotFound
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		respondError(w, "internal error", codeInternal, http.StatusInternalServerError)
		return
	}
	respondError(w, err.Error(), domain.CodeOf(err), status)
}

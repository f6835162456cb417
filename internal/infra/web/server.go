package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"onchain-ai-assistant/internal/domain"
	"onchain-ai-assistant/internal/domain/model"
	"onchain-ai-assistant/internal/infra/logging"
)

// Server is the HTTP surface of the agent: token exchange, session
// lifecycle, and the message endpoints (buffered and streaming).
type Server struct {
	sessions *SessionManager
	auth     *AuthManager
	apiKey   string
	log      *zerolog.Logger

	http *http.Server
}

func NewServer(port int, sessions *SessionManager, auth *AuthManager, apiKey string, logger *zerolog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		auth:     auth,
		apiKey:   apiKey,
		log:      logger,
	}
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Routes(),
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(traceID, requestLog(s.log), recoverer(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/token", s.handleToken)

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/reset", s.handleResetSession)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/messages/stream", s.handleSendMessageStream)
		})
	})
	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ===== handlers =====

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token mint failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(s.auth.TTL().Seconds()),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	session, err := s.sessions.Create(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(session, nil))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	// ?limit=N returns only the N most recent messages.
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	writeJSON(w, http.StatusOK, sessionView(session, session.GetRecentMessages(limit)))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Reset(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	session, err := s.sessions.Snapshot(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session, nil))
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, session, err := s.sessions.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), req.Message)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reply":             reply,
		"turn_count":        session.TurnCount,
		"total_cost_micros": session.TotalCostMicros,
	})
}

// handleSendMessageStream delivers the reply as server-sent events: one
// "delta" event per chunk, then a final "done" event.
func (s *Server) handleSendMessageStream(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id := chi.URLParam(r, "sessionID")
	ctx := logging.WithSessID(r.Context(), id)
	chunks, release, err := s.sessions.SendMessageStream(ctx, id, req.Message)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range chunks {
		if chunk.Err != nil {
			logging.With(ctx, s.log).Warn().Err(chunk.Err).Msg("stream failed")
			writeSSE(w, "error", map[string]string{"error": chunk.Err.Error()})
			flusher.Flush()
			return
		}
		if chunk.Delta != "" {
			writeSSE(w, "delta", map[string]string{"delta": chunk.Delta})
			flusher.Flush()
		}
		if chunk.Done {
			break
		}
	}
	writeSSE(w, "done", map[string]string{})
	flusher.Flush()
}

// ===== helpers =====

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid argument")
	case errors.Is(err, domain.ErrTurnLimitExceeded),
		errors.Is(err, domain.ErrCostLimitExceeded):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "session is not active")
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func sessionView(s *model.ChatSession, messages []model.ChatMessage) map[string]any {
	view := map[string]any{
		"id":                s.ID,
		"model":             s.Model,
		"status":            string(s.Status),
		"turn_count":        s.TurnCount,
		"total_cost_micros": s.TotalCostMicros,
		"started_at":        s.StartTime.Format(time.RFC3339),
	}
	if messages != nil {
		msgs := make([]map[string]any, 0, len(messages))
		for _, m := range messages {
			msgs = append(msgs, map[string]any{
				"role":      m.Role,
				"content":   m.Content,
				"timestamp": m.Timestamp.Format(time.RFC3339),
			})
		}
		view["messages"] = msgs
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

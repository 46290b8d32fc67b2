package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthStatus is the payload of GET /health.
type healthStatus struct {
	Transport      string `json:"transport"`
	ActiveSessions int    `json:"active_sessions"`
	ActiveWorkers  int    `json:"active_workers"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(healthStatus{
		Transport:      s.transport,
		ActiveSessions: s.agent.Sessions().Len(),
		ActiveWorkers:  s.respHandler.ActiveParticipants(),
	}))
}

func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.st.GetReceipts()
	if err != nil {
		slog.Error("Server.receiptsHandler: failed to load receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load receipts"))
		return
	}
	if receipts == nil {
		receipts = []models.Receipt{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

func (s *Server) mintsHandler(w http.ResponseWriter, r *http.Request) {
	mints, err := s.st.GetMintRecords()
	if err != nil {
		slog.Error("Server.mintsHandler: failed to load mint records", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load mint records"))
		return
	}
	if mints == nil {
		mints = []models.MintRecord{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(mints))
}

func faviconHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// telegramWebhookHandler only accepts updates posted to the path carrying
// the bot token; anything else looks like a missing route.
func (s *Server) telegramWebhookHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if s.botToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.botToken)) != 1 {
		slog.Warn("Server.telegramWebhookHandler: rejected update with unknown token", "remote", r.RemoteAddr)
		http.NotFound(w, r)
		return
	}
	s.webhook(w, r)
}

// requestLogger logs one line per request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"route", chi.RouteContext(r.Context()).RoutePattern(),
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

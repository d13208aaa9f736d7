// Package httpapi exposes the intake bot over HTTP: the message endpoint the
// chat channel posts to, health and metrics, and read-only intake queries.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intakebot/pkg/controller"
	"intakebot/pkg/conversation"
	"intakebot/pkg/logx"
	"intakebot/pkg/metrics"
	"intakebot/pkg/persistence"
)

// Server is the HTTP surface over the turn controller and the archive.
type Server struct {
	controller *controller.Controller
	archive    *persistence.Archive
	usage      *metrics.QueryService
	logger     *logx.Logger
}

// NewServer creates the API server. archive and usage may be nil; their
// endpoints then answer 503.
func NewServer(ctrl *controller.Controller, archive *persistence.Archive, usage *metrics.QueryService) *Server {
	return &Server{
		controller: ctrl,
		archive:    archive,
		usage:      usage,
		logger:     logx.NewLogger("httpapi"),
	}
}

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/intakes", s.handleIntakes)
	mux.HandleFunc("/api/intakes/", s.handleIntake)
	mux.HandleFunc("/api/usage", s.handleUsage)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// StartServer starts the HTTP server and shuts it down gracefully when ctx
// is cancelled.
func (s *Server) StartServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting intake API server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down intake API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:contextcheck // Parent context is cancelled; shutdown needs a fresh one
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed: %v", err)
		}
	}()

	return nil
}

// messageRequest is the inbound turn payload.
type messageRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Text           string `json:"text"`
}

type messageResponse struct {
	Reply string `json:"reply"`
}

// handleMessages implements POST /api/messages - one conversation turn.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ConversationID == "" || req.UserID == "" {
		http.Error(w, "conversation_id and user_id are required", http.StatusBadRequest)
		return
	}

	reply := s.controller.Turn(r.Context(), req.ConversationID, conversation.Participant{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
	}, req.Text)

	s.writeJSON(w, http.StatusOK, messageResponse{Reply: reply})
}

// handleIntakes implements GET /api/intakes - archived conversations.
func (s *Server) handleIntakes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		http.Error(w, "Archive not configured", http.StatusServiceUnavailable)
		return
	}

	intakes, err := s.archive.ListIntakes(r.Context(), 100)
	if err != nil {
		s.logger.Error("failed to list intakes: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if intakes == nil {
		intakes = []*persistence.IntakeSummary{}
	}
	s.writeJSON(w, http.StatusOK, intakes)
}

// handleIntake implements GET /api/intakes/{id} - one archived conversation
// with its transcript.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		http.Error(w, "Archive not configured", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/intakes/")
	if id == "" {
		http.Error(w, "Intake ID required", http.StatusBadRequest)
		return
	}

	summary, msgs, err := s.archive.GetIntake(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get intake %s: %v", id, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if summary == nil {
		http.Error(w, "Intake not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"intake":   summary,
		"messages": msgs,
	})
}

// handleUsage implements GET /api/usage - aggregated oracle usage from
// Prometheus. Answers 503 unless a Prometheus URL is configured.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.usage == nil {
		http.Error(w, "Usage queries not configured", http.StatusServiceUnavailable)
		return
	}

	byTask := r.URL.Query().Get("by_task") == "true"
	if byTask {
		usage, err := s.usage.GetUsageByTask(r.Context())
		if err != nil {
			s.logger.Error("usage query failed: %v", err)
			http.Error(w, "Usage query failed", http.StatusBadGateway)
			return
		}
		s.writeJSON(w, http.StatusOK, usage)
		return
	}

	usage, err := s.usage.GetUsage(r.Context())
	if err != nil {
		s.logger.Error("usage query failed: %v", err)
		http.Error(w, "Usage query failed", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

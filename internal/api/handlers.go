package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/inmobilia-pe/inmobilia-ai/internal/flow"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
	"github.com/inmobilia-pe/inmobilia-ai/internal/util"
)

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  len(s.listSessions()),
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// chatHandler handles POST /api/chat. A request without a session ID starts
// a new conversation; the welcome message is included alongside the reply to
// the first user message.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	welcome := ""
	sess := s.session(req.SessionID)
	if sess == nil {
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = util.GenerateSessionID()
		}
		sess, welcome = s.flow.StartConversation(sessionID, req.UserID)
		s.registerSession(sess)
	}

	resp, err := s.flow.HandleTurn(r.Context(), sess, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrSessionEnded):
			writeJSONResponse(w, http.StatusGone, models.Error("Session already ended"))
		case errors.Is(err, flow.ErrSessionNotActive):
			writeJSONResponse(w, http.StatusConflict, models.Error("Session is not active"))
		default:
			slog.Error("Server.chatHandler: turn failed", "error", err, "sessionID", sess.ID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		}
		return
	}

	if welcome != "" {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(welcome, resp))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// leadsHandler dispatches /api/leads and /api/leads/{id}.
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Lead storage not configured"))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/leads")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		// /api/leads
		switch r.Method {
		case http.MethodGet:
			s.listLeadsHandler(w, r)
		default:
			w.Header().Set("Allow", "GET")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	sessionID := segments[0]
	if len(segments) == 1 {
		// /api/leads/{id}
		switch r.Method {
		case http.MethodGet:
			s.getLeadHandler(w, r, sessionID)
		case http.MethodDelete:
			s.deleteLeadHandler(w, r, sessionID)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown leads endpoint"))
}

// listLeadsHandler handles GET /api/leads
func (s *Server) listLeadsHandler(w http.ResponseWriter, r *http.Request) {
	leads, err := s.store.ListLeads()
	if err != nil {
		slog.Error("Server.listLeadsHandler: failed to list leads", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list leads"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	}))
}

// getLeadHandler handles GET /api/leads/{id}
func (s *Server) getLeadHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	rec, err := s.store.GetLead(sessionID)
	if err != nil {
		slog.Error("Server.getLeadHandler: lookup failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load lead"))
		return
	}
	if rec == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Lead not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(rec))
}

// deleteLeadHandler handles DELETE /api/leads/{id}
func (s *Server) deleteLeadHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	rec, err := s.store.GetLead(sessionID)
	if err != nil {
		slog.Error("Server.deleteLeadHandler: lookup failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load lead"))
		return
	}
	if rec == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Lead not found"))
		return
	}
	if err := s.store.DeleteLead(sessionID); err != nil {
		slog.Error("Server.deleteLeadHandler: delete failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete lead"))
		return
	}
	slog.Info("Server.deleteLeadHandler: lead deleted", "sessionID", sessionID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Lead deleted", nil))
}

// sessionsHandler dispatches /api/sessions, /api/sessions/{id},
// /api/sessions/{id}/events and /api/sessions/{id}/summary.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		s.listSessionsHandler(w, r)
		return
	}

	sessionID := segments[0]
	sess := s.session(sessionID)
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	if len(segments) == 1 {
		writeJSONResponse(w, http.StatusOK, models.Success(sess.Info()))
		return
	}

	switch segments[1] {
	case "events":
		s.sessionEventsHandler(w, r, sessionID)
	case "summary":
		s.sessionSummaryHandler(w, r, sessionID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown sessions endpoint"))
	}
}

// listSessionsHandler handles GET /api/sessions
func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := s.listSessions()
	infos := make([]models.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SessionID < infos[j].SessionID })
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"sessions": infos,
		"count":    len(infos),
	}))
}

// sessionEventsHandler handles GET /api/sessions/{id}/events
func (s *Server) sessionEventsHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.store == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Event storage not configured"))
		return
	}
	events, err := s.store.GetEvents(sessionID)
	if err != nil {
		slog.Error("Server.sessionEventsHandler: failed to load events", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load events"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"events": events,
		"count":  len(events),
	}))
}

// sessionSummaryHandler handles GET /api/sessions/{id}/summary
func (s *Server) sessionSummaryHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	summary, err := s.tracker.Summary(sessionID)
	if err != nil {
		slog.Error("Server.sessionSummaryHandler: failed to build summary", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build summary"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summary))
}

// propertiesHandler handles GET /api/properties
func (s *Server) propertiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	if s.store == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Property catalog not configured"))
		return
	}
	props, err := s.store.ListProperties()
	if err != nil {
		slog.Error("Server.propertiesHandler: failed to list properties", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list properties"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"properties": props,
		"count":      len(props),
	}))
}

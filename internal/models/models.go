package models

import (
	"errors"
	"time"
)

// HandlerTarget identifies the specialized handler a message is routed to.
type HandlerTarget string

const (
	// TargetLegal handles consent and data-protection compliance (Ley 29733).
	TargetLegal HandlerTarget = "legal"
	// TargetCollector gathers basic identity and contact data.
	TargetCollector HandlerTarget = "collector"
	// TargetLocation handles district and zone preferences.
	TargetLocation HandlerTarget = "location"
	// TargetPreferences captures property preferences (budget, rooms, area).
	TargetPreferences HandlerTarget = "preferences"
	// TargetEnd terminates the conversation.
	TargetEnd HandlerTarget = "END"
	// TargetSupervisor marks control held by the routing engine itself.
	TargetSupervisor HandlerTarget = "supervisor"
)

// IsValidTarget checks whether a routing target names a dispatchable
// destination (a handler or END).
func IsValidTarget(t HandlerTarget) bool {
	switch t {
	case TargetLegal, TargetCollector, TargetLocation, TargetPreferences, TargetEnd:
		return true
	default:
		return false
	}
}

// Validation constants for chat input.
const (
	// MaxChatMessageLength bounds a single inbound user message.
	MaxChatMessageLength = 4096
	// RoutingLogMessageLimit is how much of the user message is kept in a
	// routing decision entry.
	RoutingLogMessageLimit = 50
)

var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// ChatRequest is the inbound payload for POST /api/chat. A missing session
// ID starts a new session.
type ChatRequest struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate checks chat request constraints.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxChatMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is the outbound payload for POST /api/chat.
type ChatResponse struct {
	Reply          string         `json:"reply"`
	SessionID      string         `json:"session_id"`
	UserID         string         `json:"user_id,omitempty"`
	Agent          HandlerTarget  `json:"agent"`
	Estado         LeadStatus     `json:"estado"`
	LeadFields     map[string]any `json:"lead_fields"`
	IsCoreComplete bool           `json:"is_core_complete"`
	Ended          bool           `json:"ended"`
	Timestamp      time.Time      `json:"timestamp"`
}

// RoutingDecision is one audit entry in the per-session routing log. It has
// no effect on future routing except through the lead it helped populate.
type RoutingDecision struct {
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"` // truncated user message
	Target    HandlerTarget `json:"target"`
	Rationale string        `json:"rationale"`
}

// Analytics event types.
const (
	EventConversationStarted = "conversation_started"
	EventConversationEnded   = "conversation_ended"
	EventAgentAssignment     = "agent_assignment"
	EventLeadUpdate          = "lead_update"
	EventTurnError           = "turn_error"
)

// AnalyticsEvent is a fire-and-forget observability record.
type AnalyticsEvent struct {
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Property is a catalog entry used for recommendations.
type Property struct {
	ID               string   `json:"id"`
	Tipo             string   `json:"tipo"`
	Distrito         string   `json:"distrito"`
	Direccion        string   `json:"direccion"`
	Precio           float64  `json:"precio"`
	Moneda           string   `json:"moneda"`
	Metraje          int      `json:"metraje"`
	Habitaciones     int      `json:"habitaciones"`
	Banos            int      `json:"banos"`
	Estacionamientos int      `json:"estacionamientos"`
	Descripcion      string   `json:"descripcion"`
	Caracteristicas  []string `json:"caracteristicas,omitempty"`
	Estado           string   `json:"estado"`
}

// SessionInfo summarizes an active session for the sessions listing.
type SessionInfo struct {
	SessionID    string     `json:"session_id"`
	UserID       string     `json:"user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	MessageCount int        `json:"message_count"`
	LeadStatus   LeadStatus `json:"lead_status"`
	Ended        bool       `json:"ended"`
}

// APIResponse is the standard JSON envelope for all HTTP endpoints.
type APIResponse struct {
	Status  string `json:"status"`            // "ok" or "error"
	Message string `json:"message,omitempty"` // human-readable detail
	Result  any    `json:"result,omitempty"`  // payload on success
}

// Success builds a success envelope wrapping the given payload.
func Success(result any) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage builds a success envelope with a message and payload.
func SuccessWithMessage(message string, result any) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error builds an error envelope with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}

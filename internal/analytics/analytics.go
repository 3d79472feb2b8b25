// Package analytics records conversation observability events.
//
// Tracking is fire-and-forget: sink failures are logged and never propagated,
// so analytics can never affect a conversation.
package analytics

import (
	"log/slog"
	"time"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// EventSink is the storage surface the tracker writes to.
type EventSink interface {
	AddEvent(event models.AnalyticsEvent) error
	GetEvents(sessionID string) ([]models.AnalyticsEvent, error)
}

// redactedFields never appear verbatim in analytics payloads.
var redactedFields = map[string]bool{
	models.FieldCelular:         true,
	models.FieldEmail:           true,
	models.FieldNumeroDocumento: true,
}

// Tracker records analytics events for conversations.
type Tracker struct {
	sink EventSink
}

// NewTracker creates a tracker over the given sink.
func NewTracker(sink EventSink) *Tracker {
	return &Tracker{sink: sink}
}

// TrackAgentAssignment records a routing decision.
func (t *Tracker) TrackAgentAssignment(sessionID string, target models.HandlerTarget, rationale string) {
	t.emit(models.AnalyticsEvent{
		SessionID: sessionID,
		EventType: models.EventAgentAssignment,
		Timestamp: time.Now(),
		Payload: map[string]any{
			"agent":     string(target),
			"rationale": rationale,
		},
	})
}

// TrackLeadUpdate records which lead fields changed this turn. Contact and
// document values are redacted to presence markers.
func (t *Tracker) TrackLeadUpdate(sessionID string, updated map[string]any) {
	if len(updated) == 0 {
		return
	}
	payload := make(map[string]any, len(updated))
	for field, value := range updated {
		if redactedFields[field] {
			payload[field] = "[redacted]"
			continue
		}
		payload[field] = value
	}
	t.emit(models.AnalyticsEvent{
		SessionID: sessionID,
		EventType: models.EventLeadUpdate,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// TrackConversation records a lifecycle or error event.
func (t *Tracker) TrackConversation(sessionID, eventType string, payload map[string]any) {
	t.emit(models.AnalyticsEvent{
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (t *Tracker) emit(event models.AnalyticsEvent) {
	if t == nil || t.sink == nil {
		return
	}
	if err := t.sink.AddEvent(event); err != nil {
		slog.Warn("Tracker.emit: failed to record event", "error", err, "sessionID", event.SessionID, "type", event.EventType)
	}
}

// ConversationSummary aggregates the recorded events for one session.
type ConversationSummary struct {
	SessionID        string         `json:"session_id"`
	TotalEvents      int            `json:"total_events"`
	AgentAssignments map[string]int `json:"agent_assignments"`
	LeadUpdates      int            `json:"lead_updates"`
	Errors           int            `json:"errors"`
	Started          bool           `json:"started"`
	Ended            bool           `json:"ended"`
}

// Summary builds the per-session aggregate from the sink.
func (t *Tracker) Summary(sessionID string) (ConversationSummary, error) {
	summary := ConversationSummary{
		SessionID:        sessionID,
		AgentAssignments: map[string]int{},
	}
	if t == nil || t.sink == nil {
		return summary, nil
	}
	events, err := t.sink.GetEvents(sessionID)
	if err != nil {
		return summary, err
	}
	summary.TotalEvents = len(events)
	for _, e := range events {
		switch e.EventType {
		case models.EventAgentAssignment:
			if agent, ok := e.Payload["agent"].(string); ok {
				summary.AgentAssignments[agent]++
			}
		case models.EventLeadUpdate:
			summary.LeadUpdates++
		case models.EventTurnError:
			summary.Errors++
		case models.EventConversationStarted:
			summary.Started = true
		case models.EventConversationEnded:
			summary.Ended = true
		}
	}
	return summary, nil
}

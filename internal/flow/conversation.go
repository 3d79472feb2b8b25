package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inmobilia-pe/inmobilia-ai/internal/analytics"
	"github.com/inmobilia-pe/inmobilia-ai/internal/extract"
	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// SessionState is the lifecycle state of one conversation.
type SessionState string

const (
	SessionNotStarted SessionState = "NotStarted"
	SessionActive     SessionState = "Active"
	SessionEnded      SessionState = "Ended"
)

// Session holds the ephemeral state for one conversation. The mutex
// serializes turns so duplicate webhook deliveries for the same session
// cannot interleave.
type Session struct {
	ID     string
	UserID string

	mu           sync.Mutex
	State        SessionState
	Lead         *models.Lead
	Messages     []ChatMessage
	RoutingLog   []models.RoutingDecision
	LastTarget   models.HandlerTarget
	LastError    string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Info summarizes the session for listings.
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionInfo{
		SessionID:    s.ID,
		UserID:       s.UserID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		MessageCount: len(s.Messages),
		LeadStatus:   s.Lead.Estado,
		Ended:        s.State == SessionEnded,
	}
}

// ConversationFlow wires the router, the handlers, and the supporting
// surfaces (persistence, analytics, advisor handoff) into the per-turn loop.
type ConversationFlow struct {
	router   *Router
	handlers map[models.HandlerTarget]Handler
	store    LeadStore
	tracker  *analytics.Tracker
	notifier HandoffNotifier
	policy   models.TierPolicy
}

// NewConversationFlow builds the flow with the standard four handlers. The
// store, tracker, notifier, and recommender are all optional; a nil
// collaborator disables that surface without affecting the conversation.
func NewConversationFlow(llm genai.ClientInterface, leadStore LeadStore, tracker *analytics.Tracker, notifier HandoffNotifier, recommender *Recommender) *ConversationFlow {
	f := &ConversationFlow{
		router:   NewRouter(llm, tracker),
		handlers: make(map[models.HandlerTarget]Handler),
		store:    leadStore,
		tracker:  tracker,
		notifier: notifier,
		policy:   models.DefaultTierPolicy(),
	}
	for _, h := range []Handler{
		NewLegalHandler(llm),
		NewCollectorHandler(llm),
		NewLocationHandler(llm),
		NewPreferencesHandler(llm, recommender),
	} {
		f.handlers[h.Target()] = h
	}
	return f
}

// SetTierPolicy overrides the tier assignment used for new leads.
func (f *ConversationFlow) SetTierPolicy(policy models.TierPolicy) {
	f.policy = policy
}

// StartConversation creates a session with an empty lead and emits the fixed
// welcome message. Starting does not consume a user turn.
func (f *ConversationFlow) StartConversation(sessionID, userID string) (*Session, string) {
	now := time.Now()
	sess := &Session{
		ID:           sessionID,
		UserID:       userID,
		State:        SessionActive,
		Lead:         models.NewLead(f.policy),
		LastTarget:   models.TargetSupervisor,
		CreatedAt:    now,
		LastActivity: now,
	}
	sess.Messages = append(sess.Messages, ChatMessage{
		Role:      "assistant",
		Content:   WelcomeMessage,
		Agent:     string(models.TargetSupervisor),
		Timestamp: now,
	})
	f.tracker.TrackConversation(sessionID, models.EventConversationStarted, map[string]any{"user_id": userID})
	slog.Info("ConversationFlow.StartConversation: session started", "sessionID", sessionID)
	return sess, WelcomeMessage
}

// HandleTurn processes one user message: extract, route, dispatch, persist,
// track. Unexpected failures degrade to the clarification message and keep
// the session active.
// resp is a named return so the deferred recover can rewrite it.
func (f *ConversationFlow) HandleTurn(ctx context.Context, sess *Session, message string) (resp models.ChatResponse, err error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.State {
	case SessionEnded:
		return models.ChatResponse{}, ErrSessionEnded
	case SessionNotStarted:
		return models.ChatResponse{}, ErrSessionNotActive
	}

	resp = models.ChatResponse{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Agent:     models.TargetSupervisor,
		Timestamp: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("ConversationFlow.HandleTurn: recovered from panic", "sessionID", sess.ID, "panic", r)
			sess.LastError = fmt.Sprintf("panic: %v", r)
			f.tracker.TrackConversation(sess.ID, models.EventTurnError, map[string]any{"error": sess.LastError})
			f.finishTurn(sess, &resp, ClarificationMessage, models.TargetSupervisor)
		}
	}()

	sess.Messages = append(sess.Messages, ChatMessage{Role: "user", Content: message, Timestamp: time.Now()})
	sess.LastActivity = time.Now()

	// Single extraction pass over the raw message; handlers see the lead
	// already updated, mirroring the supervisor-first pipeline.
	before := sess.Lead.ToMap()
	sess.Lead.ApplyExtracted(extract.All(message))
	f.trackFieldChanges(sess, before)

	decision := f.router.Decide(ctx, sess, sess.Lead, message)

	if decision.Target == models.TargetEnd {
		f.endConversation(ctx, sess)
		f.finishTurn(sess, &resp, GoodbyeMessage, models.TargetEnd)
		return resp, nil
	}

	handler, ok := f.handlers[decision.Target]
	if !ok {
		slog.Error("ConversationFlow.HandleTurn: unknown routing target", "sessionID", sess.ID, "target", decision.Target)
		sess.LastError = ErrUnknownHandler.Error()
		f.tracker.TrackConversation(sess.ID, models.EventTurnError, map[string]any{"error": sess.LastError, "target": string(decision.Target)})
		f.finishTurn(sess, &resp, ClarificationMessage, models.TargetSupervisor)
		return resp, nil
	}

	leadBefore := sess.Lead.ToMap()
	reply := handler.Process(ctx, sess, message, sess.Lead)
	f.trackFieldChanges(sess, leadBefore)

	f.finishTurn(sess, &resp, reply, decision.Target)
	return resp, nil
}

// finishTurn appends the assistant reply, persists the lead, and fills the
// response envelope. Control returns to the router for the next turn.
func (f *ConversationFlow) finishTurn(sess *Session, resp *models.ChatResponse, reply string, agent models.HandlerTarget) {
	sess.Messages = append(sess.Messages, ChatMessage{
		Role:      "assistant",
		Content:   reply,
		Agent:     string(agent),
		Timestamp: time.Now(),
	})
	sess.LastTarget = models.TargetSupervisor
	f.persistLead(sess)

	resp.Reply = reply
	resp.Agent = agent
	resp.Estado = sess.Lead.Estado
	resp.LeadFields = sess.Lead.ToMap()
	resp.IsCoreComplete = sess.Lead.IsCoreComplete()
	resp.Ended = sess.State == SessionEnded
}

// endConversation marks the session ended and, when the lead is qualified,
// hands it off to an advisor. Handoff failures are logged only.
func (f *ConversationFlow) endConversation(ctx context.Context, sess *Session) {
	sess.State = SessionEnded
	f.tracker.TrackConversation(sess.ID, models.EventConversationEnded, map[string]any{
		"estado":           string(sess.Lead.Estado),
		"is_core_complete": sess.Lead.IsCoreComplete(),
	})
	slog.Info("ConversationFlow.endConversation: session ended", "sessionID", sess.ID, "estado", sess.Lead.Estado)

	if f.notifier != nil && sess.Lead.IsCoreComplete() {
		if err := f.notifier.NotifyHandoff(ctx, sess.ID, sess.Lead.ToMap()); err != nil {
			slog.Warn("ConversationFlow.endConversation: advisor handoff failed", "sessionID", sess.ID, "error", err)
		}
	}
}

// persistLead saves the current snapshot. Persistence failures never roll
// back in-memory state.
func (f *ConversationFlow) persistLead(sess *Session) {
	if f.store == nil {
		return
	}
	if err := f.store.SaveLead(sess.ID, sess.Lead.ToMap()); err != nil {
		slog.Warn("ConversationFlow.persistLead: save failed", "sessionID", sess.ID, "error", err)
	}
}

// trackFieldChanges emits a lead_update event for fields that appeared since
// the before snapshot.
func (f *ConversationFlow) trackFieldChanges(sess *Session, before map[string]any) {
	after := sess.Lead.ToMap()
	changed := map[string]any{}
	for k, v := range after {
		if k == "estado" || k == "fecha_consentimiento" {
			continue
		}
		if _, existed := before[k]; !existed {
			changed[k] = v
		}
	}
	if len(changed) > 0 {
		f.tracker.TrackLeadUpdate(sess.ID, changed)
	}
}

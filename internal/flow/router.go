package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/inmobilia-pe/inmobilia-ai/internal/analytics"
	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

const routerSystemPrompt = `Eres un supervisor de conversación para un asistente inmobiliario en Perú.
Tu trabajo es analizar cada mensaje del usuario y determinar qué agente especializado
debe manejarlo, basándote en el contexto actual y el estado del lead.

Agentes disponibles:
1. legal: Maneja consentimiento y aspectos legales (debe activarse primero si no hay consentimiento)
2. collector: Obtiene datos básicos del usuario (nombre, contacto, etc.)
3. location: Maneja consultas sobre ubicaciones y distritos en Perú
4. preferences: Captura preferencias específicas sobre el inmueble (presupuesto, metraje, etc.)
5. END: Finaliza la conversación cuando el lead está completo o el usuario está satisfecho

Prioridades:
- Si falta consentimiento, siempre asigna "legal" primero
- Si el mensaje contiene información sobre ubicaciones, asigna "location"
- Si el mensaje contiene preferencias inmobiliarias, asigna "preferences"
- Si necesitas datos personales básicos, asigna "collector"
- Si el usuario indica que ha terminado o agradece, considera "END"

Responde en JSON con el formato {"next": "<agente>", "reasoning": "<motivo>"}.`

// Keyword sets for the deterministic fallback cascade.
var (
	farewellWords = []string{"gracias", "adios", "adiós", "chau", "hasta luego", "terminar", "finalizar"}

	preferenceKeywords = []string{"precio", "costo", "presupuesto", "habitacion", "habitación", "cuarto"}
	locationKeywords   = []string{"zona", "distrito", "ubicacion", "ubicación", "lugar", "donde", "dónde"}
	identityKeywords   = []string{"nombre", "llamo", "contacto", "celular", "teléfono", "telefono", "email", "correo"}
)

// Router selects the handler for each user message. It asks the LLM for a
// structured decision and degrades to a deterministic cascade on any failure,
// so routing can never abort a conversation.
type Router struct {
	llm     genai.ClientInterface
	tracker *analytics.Tracker
}

// NewRouter creates a router. The LLM client may be nil, in which case only
// the deterministic cascade is used.
func NewRouter(llm genai.ClientInterface, tracker *analytics.Tracker) *Router {
	return &Router{llm: llm, tracker: tracker}
}

// Decide selects the routing target for the current message, appends the
// decision to the session routing log, and records it for analytics.
func (r *Router) Decide(ctx context.Context, sess *Session, lead *models.Lead, message string) models.RoutingDecision {
	target, rationale := r.llmDecide(ctx, sess, lead, message)
	if target == "" {
		target, rationale = fallbackTarget(lead, message, sess.LastTarget)
	}

	decision := models.RoutingDecision{
		Timestamp: time.Now(),
		Message:   truncateMessage(message, models.RoutingLogMessageLimit),
		Target:    target,
		Rationale: rationale,
	}
	sess.RoutingLog = append(sess.RoutingLog, decision)
	r.tracker.TrackAgentAssignment(sess.ID, target, rationale)
	slog.Info("Router.Decide: target selected", "sessionID", sess.ID, "target", target, "rationale", rationale)
	return decision
}

// llmDecide asks the model for a structured decision. An empty target means
// the caller must fall back.
func (r *Router) llmDecide(ctx context.Context, sess *Session, lead *models.Lead, message string) (models.HandlerTarget, string) {
	if r.llm == nil {
		return "", ""
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(routerSystemPrompt),
		openai.SystemMessage("Datos ya recolectados:\n" + formatLeadData(lead)),
	}
	if missing := lead.MissingFields(10); len(missing) > 0 {
		messages = append(messages, openai.SystemMessage("Campos obligatorios faltantes: "+strings.Join(missing, ", ")))
	}
	messages = append(messages, recentHistory(sess)...)
	messages = append(messages, openai.UserMessage(message))

	decision, err := r.llm.DecideRoute(ctx, messages)
	if err != nil {
		slog.Warn("Router.llmDecide: structured decision failed, using fallback", "sessionID", sess.ID, "error", err)
		return "", ""
	}
	target := models.HandlerTarget(decision.Target)
	if !models.IsValidTarget(target) {
		slog.Warn("Router.llmDecide: model returned invalid target, using fallback", "sessionID", sess.ID, "target", decision.Target)
		return "", ""
	}
	return target, decision.Rationale
}

// fallbackTarget is the deterministic routing cascade. It is a strict
// priority order: the first matching step wins.
func fallbackTarget(lead *models.Lead, message string, lastTarget models.HandlerTarget) (models.HandlerTarget, string) {
	// Re-entry guard: a handler already mid-flow keeps the turn.
	if lastTarget != "" && lastTarget != models.TargetSupervisor {
		return lastTarget, "fallback: continúa el agente en curso"
	}

	lower := strings.ToLower(message)

	if containsAny(lower, farewellWords) && lead.HasConsent() {
		return models.TargetEnd, "fallback: despedida con consentimiento otorgado"
	}

	if !lead.HasConsent() {
		return models.TargetLegal, "fallback: sin consentimiento"
	}

	if lead.Nombre == nil || !lead.HasContact() {
		return models.TargetCollector, "fallback: faltan datos básicos de identidad o contacto"
	}

	if lead.Distrito == nil || lead.TipoInmueble == nil {
		return models.TargetLocation, "fallback: falta ubicación o tipo de inmueble"
	}

	if lead.TipoInmueble != nil && (lead.PresupuestoMax == nil || lead.Habitaciones == nil) {
		return models.TargetPreferences, "fallback: faltan preferencias del inmueble"
	}

	if lead.Estado == models.StatusLeadEnriquecido {
		return models.TargetEnd, "fallback: lead enriquecido"
	}

	switch {
	case containsAny(lower, preferenceKeywords):
		return models.TargetPreferences, "fallback: palabras clave de preferencias"
	case containsAny(lower, locationKeywords):
		return models.TargetLocation, "fallback: palabras clave de ubicación"
	case containsAny(lower, identityKeywords):
		return models.TargetCollector, "fallback: palabras clave de identidad"
	}

	if lead.HasConsent() {
		return models.TargetPreferences, "fallback: enriquecer el lead"
	}
	return models.TargetLegal, "fallback: por defecto"
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

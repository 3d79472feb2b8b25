// Package flow implements the conversational core: the routing engine, the
// four specialized handlers, and the per-session conversation loop that ties
// them to extraction, persistence, analytics, and advisor handoff.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// Canned assistant messages. Wording mirrors the production copy used on the
// WhatsApp channel.
const (
	WelcomeMessage = "Hola, soy el asistente inmobiliario de Inmobilia. Estoy aquí para ayudarte a encontrar tu propiedad ideal en Perú. ¿En qué puedo ayudarte?"

	GoodbyeMessage = "Gracias por contactarnos. Pronto un asesor inmobiliario se comunicará contigo. ¡Que tengas un excelente día!"

	ClarificationMessage = "No comprendí bien tu solicitud. ¿Podrías por favor ser más específico sobre el tipo de propiedad que estás buscando?"

	ConsentMessage = "Para ayudarte mejor, necesito tu autorización para procesar tus datos personales según la Ley 29733 de Protección de Datos Personales de Perú. ¿Me autorizas?"
)

// recentHistoryWindow bounds how many logged messages are replayed to the
// LLM for context.
const recentHistoryWindow = 6

// Sentinel errors for the conversation loop.
var (
	ErrSessionEnded     = errors.New("session already ended")
	ErrSessionNotActive = errors.New("session is not active")
	ErrUnknownHandler   = errors.New("no handler registered for target")
)

// Handler is one specialized conversational agent. Process extracts what it
// can from the message, mutates the lead, and produces a reply. A handler
// never routes to another handler; control always returns to the router.
type Handler interface {
	Target() models.HandlerTarget
	Process(ctx context.Context, sess *Session, message string, lead *models.Lead) string
}

// LeadStore is the narrow persistence surface the flow needs.
type LeadStore interface {
	SaveLead(sessionID string, fields map[string]any) error
}

// HandoffNotifier delivers the advisor handoff when a conversation ends with
// a qualified lead.
type HandoffNotifier interface {
	NotifyHandoff(ctx context.Context, sessionID string, leadFields map[string]any) error
}

// ChatMessage is one entry in the session message log.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// leadFieldLabels maps canonical field names to display labels for prompts.
var leadFieldLabels = map[string]string{
	models.FieldNombre:          "Nombre",
	models.FieldTipoInmueble:    "Tipo de inmueble",
	models.FieldConsentimiento:  "Consentimiento otorgado",
	models.FieldCelular:         "Número de celular",
	models.FieldEmail:           "Correo electrónico",
	models.FieldDistrito:        "Distrito de interés",
	models.FieldZona:            "Zona",
	models.FieldMetraje:         "Metraje (m²)",
	models.FieldHabitaciones:    "Número de habitaciones",
	models.FieldPresupuestoMin:  "Presupuesto mínimo",
	models.FieldPresupuestoMax:  "Presupuesto máximo",
	models.FieldTipoDocumento:   "Tipo de documento",
	models.FieldNumeroDocumento: "Número de documento",
	models.FieldTimelineCompra:  "Plazo para compra",
}

// formatLeadData renders the captured lead fields for inclusion in a prompt.
func formatLeadData(lead *models.Lead) string {
	fields := lead.ToMap()
	delete(fields, "estado")
	delete(fields, "fecha_consentimiento")
	if len(fields) == 0 {
		return "No se han recolectado datos todavía."
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		value := fields[key]
		label, ok := leadFieldLabels[key]
		if !ok {
			label = key
		}
		switch key {
		case models.FieldConsentimiento:
			if value == true {
				value = "Sí"
			} else {
				value = "No"
			}
		case models.FieldPresupuestoMin, models.FieldPresupuestoMax:
			if f, ok := value.(float64); ok {
				value = fmt.Sprintf("S/ %.2f", f)
			}
		}
		fmt.Fprintf(&b, "- %s: %v\n", label, value)
	}
	return b.String()
}

// buildHandlerMessages assembles the standard prompt layout shared by all
// handlers: system prompt, lead snapshot, missing fields, recent history,
// then the current user message.
func buildHandlerMessages(systemPrompt string, sess *Session, lead *models.Lead, userMessage string) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.SystemMessage("Datos ya recolectados:\n" + formatLeadData(lead)),
	}
	if missing := lead.MissingFields(7); len(missing) > 0 {
		messages = append(messages, openai.SystemMessage("Campos faltantes: "+strings.Join(missing, ", ")))
	}
	messages = append(messages, recentHistory(sess)...)
	messages = append(messages, openai.UserMessage(userMessage))
	return messages
}

// recentHistory converts the tail of the session log into LLM messages.
func recentHistory(sess *Session) []openai.ChatCompletionMessageParamUnion {
	if sess == nil {
		return nil
	}
	log := sess.Messages
	if len(log) > recentHistoryWindow {
		log = log[len(log)-recentHistoryWindow:]
	}
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(log))
	for _, m := range log {
		if m.Role == "assistant" {
			out = append(out, openai.AssistantMessage(m.Content))
		} else {
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// generateReply runs the shared handler prompt layout through the LLM.
// Any failure degrades to the generic clarification message so a handler
// turn never aborts the conversation.
func generateReply(ctx context.Context, llm genai.ClientInterface, systemPrompt string, sess *Session, lead *models.Lead, message string) string {
	if llm == nil {
		return ClarificationMessage
	}
	reply, err := llm.GenerateWithMessages(ctx, buildHandlerMessages(systemPrompt, sess, lead, message))
	if err != nil {
		slog.Warn("flow.generateReply: reply generation failed, degrading to clarification", "sessionID", sess.ID, "error", err)
		return ClarificationMessage
	}
	return reply
}

// truncateMessage shortens a user message for the routing log, respecting
// rune boundaries.
func truncateMessage(message string, limit int) string {
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return string(runes[:limit]) + "..."
}

package flow

import (
	"context"
	"log/slog"

	"github.com/inmobilia-pe/inmobilia-ai/internal/extract"
	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

const legalSystemPrompt = `Eres un agente especializado en aspectos legales para un asistente inmobiliario en Perú.
Tu principal responsabilidad es asegurar el cumplimiento de la Ley 29733 de Protección de Datos Personales.

Prioridades:
1. Solicitar y confirmar consentimiento explícito para procesar datos personales.
2. Explicar de forma sencilla cómo se usarán los datos proporcionados.
3. Informar sobre derechos ARCO (Acceso, Rectificación, Cancelación y Oposición).

Importante:
- NO puedes recolectar datos personales sin antes obtener consentimiento explícito.
- Debes explicar que los datos serán usados para buscar propiedades que se ajusten a las necesidades del usuario.
- El tono debe ser profesional pero accesible y respetuoso.
- Las respuestas deben ser breves y naturales, sin tecnicismos excesivos.

Recuerda: si el usuario no ha dado consentimiento, debes solicitarlo antes de continuar.`

// LegalHandler manages consent under Ley 29733. It recognizes an affirmative
// free-text answer to its own consent request as consent.
type LegalHandler struct {
	llm genai.ClientInterface
}

// NewLegalHandler creates the legal/consent handler.
func NewLegalHandler(llm genai.ClientInterface) *LegalHandler {
	return &LegalHandler{llm: llm}
}

func (h *LegalHandler) Target() models.HandlerTarget { return models.TargetLegal }

// Process stamps consent on an affirmative reply to the consent request and
// answers the user. When consent is still pending and no LLM is available,
// the fixed consent request is used so the legal question is always asked.
func (h *LegalHandler) Process(ctx context.Context, sess *Session, message string, lead *models.Lead) string {
	if !lead.HasConsent() && awaitingConsent(sess) && extract.Consent(message) {
		lead.GrantConsent()
		slog.Info("LegalHandler.Process: consent granted", "sessionID", sess.ID)
	}

	if !lead.HasConsent() && h.llm == nil {
		return ConsentMessage
	}
	reply := generateReply(ctx, h.llm, legalSystemPrompt, sess, lead, message)
	if reply == ClarificationMessage && !lead.HasConsent() {
		// A degraded reply must still carry the consent request.
		return ConsentMessage
	}
	return reply
}

// awaitingConsent reports whether the latest assistant reply came from the
// legal handler, meaning the current message answers the consent request.
// Words like "si" are too ambiguous to count as consent outside that
// exchange ("si busco casa..." is a conditional, not an authorization).
func awaitingConsent(sess *Session) bool {
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == "assistant" {
			return sess.Messages[i].Agent == string(models.TargetLegal)
		}
	}
	return false
}

package flow

import (
	"context"

	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

const preferencesSystemPrompt = `Eres un agente especializado en capturar preferencias inmobiliarias en Perú.
Tu objetivo es obtener detalles específicos sobre el tipo de propiedad que el usuario está buscando.

Preferencias que debes capturar (en orden de prioridad):
1. Tipo de inmueble (departamento, casa, terreno, oficina, etc.)
2. Presupuesto aproximado (mínimo y/o máximo)
3. Metraje deseado
4. Número de habitaciones y baños
5. Características específicas (estacionamiento, áreas comunes, etc.)
6. Plazo para la compra/alquiler

Indicaciones importantes:
- Sé conversacional y natural, no interrogatorio.
- Haz una pregunta a la vez enfocándote en las más prioritarias primero.
- Si el usuario ya mencionó alguna preferencia, considérala y no la preguntes de nuevo.
- Ayuda al usuario a definir sus preferencias si están ambiguas (ej. si dice "barato", pregunta por un rango específico).
- Adapta las preguntas al contexto de Perú (moneda en soles, zonas peruanas, etc.).

Responde de manera natural y pregunta por la siguiente preferencia prioritaria que falte.`

// PreferencesHandler captures property preferences and, once the lead is
// qualified, surfaces matching listings from the catalog.
type PreferencesHandler struct {
	llm         genai.ClientInterface
	recommender *Recommender
}

// NewPreferencesHandler creates the preferences handler. The recommender is
// optional.
func NewPreferencesHandler(llm genai.ClientInterface, recommender *Recommender) *PreferencesHandler {
	return &PreferencesHandler{llm: llm, recommender: recommender}
}

func (h *PreferencesHandler) Target() models.HandlerTarget { return models.TargetPreferences }

// Process replies about preferences and appends property recommendations
// once the lead has reached at least Lead status.
func (h *PreferencesHandler) Process(ctx context.Context, sess *Session, message string, lead *models.Lead) string {
	reply := generateReply(ctx, h.llm, preferencesSystemPrompt, sess, lead, message)

	if lead.Estado == models.StatusLead || lead.Estado == models.StatusLeadEnriquecido {
		if listings := FormatProperties(h.recommender.Recommend(lead, DefaultRecommendationLimit)); listings != "" {
			reply = reply + "\n\n" + listings
		}
	}
	return reply
}

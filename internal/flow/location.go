package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/inmobilia-pe/inmobilia-ai/internal/extract"
	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

const locationPromptIntro = `Eres un agente especializado en ubicaciones inmobiliarias en Perú, con énfasis en Lima Metropolitana.
Tu objetivo es ayudar al usuario a identificar zonas o distritos que se ajusten a sus necesidades.

Conocimientos que debes dominar:
1. Distritos de Lima y sus características (precio, seguridad, accesibilidad, etc.)
2. Principales ciudades de Perú y sus zonas residenciales
3. Tendencias inmobiliarias por ubicación
4. Conectividad y transporte entre zonas

Cuando interactúes con el usuario:
- Pregunta por sus preferencias en cuanto a ubicación
- Ayúdalo a definir el distrito o zona que mejor se ajuste a sus necesidades
- Ofrece información relevante sobre las zonas mencionadas (brevemente)
- Evita incluir datos precisos de precios, pero sí puedes mencionar si una zona es económica, media o exclusiva`

// zoneProfiles gives each metropolitan zone its display name and price
// profile for the prompt, in presentation order.
var zoneProfiles = []struct {
	key     string
	display string
	profile string
}{
	{"lima moderna", "Lima Moderna", "zonas exclusivas y de alto valor"},
	{"lima centro", "Lima Centro", "zonas de valor medio-alto"},
	{"lima norte", "Lima Norte", "zonas de valor medio-bajo"},
	{"lima sur", "Lima Sur", "zonas de valor medio-bajo"},
	{"lima este", "Lima Este", "zonas mixtas, desde exclusivas hasta económicas"},
}

var locationSystemPrompt = buildLocationPrompt()

// buildLocationPrompt assembles the district overview from the extraction
// gazetteer so the prompt and the extractor share one list.
func buildLocationPrompt() string {
	var b strings.Builder
	b.WriteString(locationPromptIntro)
	b.WriteString("\n\nLos principales distritos de Lima son:\n")
	for _, zp := range zoneProfiles {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", zp.display, strings.Join(extract.LimaZones[zp.key], ", "), zp.profile)
	}
	b.WriteString("\nResponde de manera concisa y natural, enfocándote en ayudar al usuario a definir la ubicación ideal para su búsqueda inmobiliaria.")
	return b.String()
}

// LocationHandler resolves district and zone preferences.
type LocationHandler struct {
	llm genai.ClientInterface
}

// NewLocationHandler creates the location handler.
func NewLocationHandler(llm genai.ClientInterface) *LocationHandler {
	return &LocationHandler{llm: llm}
}

func (h *LocationHandler) Target() models.HandlerTarget { return models.TargetLocation }

func (h *LocationHandler) Process(ctx context.Context, sess *Session, message string, lead *models.Lead) string {
	// A known district pins down the zone without asking for it.
	if lead.Distrito != nil && lead.Zona == nil {
		if zona := extract.ZoneOf(*lead.Distrito); zona != "" {
			lead.ApplyExtracted(models.Candidates{models.FieldZona: zona})
		}
	}
	return generateReply(ctx, h.llm, locationSystemPrompt, sess, lead, message)
}

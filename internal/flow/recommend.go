package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// Budget and area tolerances applied when matching listings against lead
// preferences.
const (
	budgetTolerance        = 1.1 // accept up to 10% over the stated maximum
	relaxedBudgetTolerance = 1.2
	areaFloor              = 0.9 // accept down to 90% of the desired area
)

// DefaultRecommendationLimit is how many listings a reply surfaces.
const DefaultRecommendationLimit = 3

// PropertyLister is the catalog surface the recommender reads from.
type PropertyLister interface {
	ListProperties() ([]models.Property, error)
}

// Recommender matches catalog listings against lead preferences.
type Recommender struct {
	catalog PropertyLister
}

// NewRecommender creates a recommender over the given catalog.
func NewRecommender(catalog PropertyLister) *Recommender {
	return &Recommender{catalog: catalog}
}

// propertyFilters are the effective match criteria derived from a lead.
// Zero values mean "no constraint".
type propertyFilters struct {
	tipo         string
	distrito     string
	maxPrecio    float64
	minPrecio    float64
	minMetraje   float64
	habitaciones int
}

func filtersFromLead(lead *models.Lead) propertyFilters {
	var f propertyFilters
	if lead.TipoInmueble != nil {
		f.tipo = *lead.TipoInmueble
	}
	if lead.Distrito != nil {
		f.distrito = *lead.Distrito
	}
	if lead.PresupuestoMax != nil {
		f.maxPrecio = *lead.PresupuestoMax * budgetTolerance
	}
	if lead.PresupuestoMin != nil {
		f.minPrecio = *lead.PresupuestoMin
	}
	if lead.Metraje != nil {
		f.minMetraje = float64(*lead.Metraje) * areaFloor
	}
	if lead.Habitaciones != nil {
		f.habitaciones = *lead.Habitaciones
	}
	return f
}

func (f propertyFilters) matches(p models.Property) bool {
	if f.tipo != "" && p.Tipo != f.tipo {
		return false
	}
	if f.distrito != "" && p.Distrito != f.distrito {
		return false
	}
	if f.maxPrecio > 0 && p.Precio > f.maxPrecio {
		return false
	}
	if f.minPrecio > 0 && p.Precio < f.minPrecio {
		return false
	}
	if f.minMetraje > 0 && float64(p.Metraje) < f.minMetraje {
		return false
	}
	if f.habitaciones > 0 && p.Habitaciones < f.habitaciones {
		return false
	}
	return true
}

// Recommend returns up to limit listings matching the lead. When too few
// match, the filters are relaxed: the budget ceiling widens and, if nothing
// matched at all, the district constraint is dropped.
func (r *Recommender) Recommend(lead *models.Lead, limit int) []models.Property {
	if r == nil || r.catalog == nil || limit <= 0 {
		return nil
	}
	all, err := r.catalog.ListProperties()
	if err != nil {
		slog.Warn("Recommender.Recommend: catalog unavailable", "error", err)
		return nil
	}

	filters := filtersFromLead(lead)
	matches := filterProperties(all, filters, limit)
	if len(matches) < limit {
		relaxed := filters
		if relaxed.maxPrecio > 0 {
			relaxed.maxPrecio = relaxed.maxPrecio / budgetTolerance * relaxedBudgetTolerance
		}
		if len(matches) == 0 {
			relaxed.distrito = ""
		}
		matches = filterProperties(all, relaxed, limit)
	}
	return matches
}

func filterProperties(all []models.Property, f propertyFilters, limit int) []models.Property {
	var out []models.Property
	for _, p := range all {
		if f.matches(p) {
			out = append(out, p)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// FormatProperties renders listings for a chat reply.
func FormatProperties(props []models.Property) string {
	if len(props) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Estas propiedades podrían interesarte:\n")
	for _, p := range props {
		fmt.Fprintf(&b, "- %s en %s, %s: %d m², %d hab., %s %.0f\n",
			capitalize(p.Tipo), p.Distrito, p.Direccion,
			p.Metraje, p.Habitaciones, p.Moneda, p.Precio)
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

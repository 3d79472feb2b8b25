package flow

import (
	"strings"
	"testing"

	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
	"github.com/inmobilia-pe/inmobilia-ai/internal/store"
)

func TestRecommendFiltersByTypeAndDistrict(t *testing.T) {
	r := NewRecommender(store.NewInMemoryStore())
	lead := leadWith(models.Candidates{
		models.FieldTipoInmueble: "departamento",
		models.FieldDistrito:     "Miraflores",
	})

	props := r.Recommend(lead, 3)
	if len(props) == 0 {
		t.Fatal("expected at least one match")
	}
	for _, p := range props {
		if p.Tipo != "departamento" || p.Distrito != "Miraflores" {
			t.Errorf("unexpected match: %+v", p)
		}
	}
}

func TestRecommendBudgetTolerance(t *testing.T) {
	r := NewRecommender(store.NewInMemoryStore())
	// prop004 in Barranco costs 190000; a 180000 ceiling still matches
	// within the 10% tolerance.
	lead := leadWith(models.Candidates{
		models.FieldTipoInmueble:   "departamento",
		models.FieldDistrito:       "Barranco",
		models.FieldPresupuestoMax: 180000.0,
	})

	props := r.Recommend(lead, 3)
	found := false
	for _, p := range props {
		if p.ID == "prop004" {
			found = true
		}
	}
	if !found {
		t.Errorf("budget tolerance should admit prop004, got %+v", props)
	}
}

func TestRecommendRelaxesDistrictWhenNothingMatches(t *testing.T) {
	r := NewRecommender(store.NewInMemoryStore())
	// No catalog entry exists in Comas; the district constraint is dropped.
	lead := leadWith(models.Candidates{
		models.FieldTipoInmueble: "departamento",
		models.FieldDistrito:     "Comas",
	})

	props := r.Recommend(lead, 3)
	if len(props) == 0 {
		t.Error("relaxation pass should still surface listings")
	}
	for _, p := range props {
		if p.Tipo != "departamento" {
			t.Errorf("type constraint must survive relaxation: %+v", p)
		}
	}
}

func TestRecommendNilSafety(t *testing.T) {
	var r *Recommender
	if props := r.Recommend(leadWith(nil), 3); props != nil {
		t.Errorf("nil recommender returned %v", props)
	}
}

func TestFormatProperties(t *testing.T) {
	props := []models.Property{store.SampleProperties[0]}
	out := FormatProperties(props)
	if !strings.Contains(out, "Miraflores") || !strings.Contains(out, "USD") {
		t.Errorf("formatted listing missing fields: %q", out)
	}
	if FormatProperties(nil) != "" {
		t.Error("empty listing set should format to empty string")
	}
}

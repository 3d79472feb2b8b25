package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"

	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
)

// mockLLM implements genai.ClientInterface for flow tests.
type mockLLM struct {
	reply    string
	replyErr error
	route    genai.RouteDecision
	routeErr error

	generateCalls int
	routeCalls    int
}

func (m *mockLLM) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.generateCalls++
	return m.reply, m.replyErr
}

func (m *mockLLM) DecideRoute(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (genai.RouteDecision, error) {
	m.routeCalls++
	return m.route, m.routeErr
}

func newTestSession() *Session {
	return &Session{
		ID:         "s_test",
		State:      SessionActive,
		Lead:       models.NewLead(models.DefaultTierPolicy()),
		LastTarget: models.TargetSupervisor,
	}
}

func leadWith(c models.Candidates) *models.Lead {
	lead := models.NewLead(models.DefaultTierPolicy())
	lead.ApplyExtracted(c)
	return lead
}

func TestFallbackCascade(t *testing.T) {
	consented := models.Candidates{models.FieldConsentimiento: true}

	tests := []struct {
		name       string
		lead       *models.Lead
		message    string
		lastTarget models.HandlerTarget
		want       models.HandlerTarget
	}{
		{
			name:       "re-entry guard keeps current handler",
			lead:       leadWith(nil),
			message:    "hola",
			lastTarget: models.TargetCollector,
			want:       models.TargetCollector,
		},
		{
			name:       "scenario A: empty lead routes to legal",
			lead:       leadWith(nil),
			message:    "Hola",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetLegal,
		},
		{
			name:       "farewell without consent still goes to legal",
			lead:       leadWith(nil),
			message:    "gracias, adios",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetLegal,
		},
		{
			name:       "farewell with consent ends",
			lead:       leadWith(consented),
			message:    "gracias, hasta luego",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetEnd,
		},
		{
			name:       "consent but no identity routes to collector",
			lead:       leadWith(consented),
			message:    "busco algo bonito",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetCollector,
		},
		{
			name: "scenario B: identity done, missing district and type routes to location",
			lead: leadWith(models.Candidates{
				models.FieldConsentimiento: true,
				models.FieldNombre:         "Juan",
				models.FieldEmail:          "juan@x.com",
			}),
			message:    "Me llamo Juan, mi correo es juan@x.com",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetLocation,
		},
		{
			name: "scenario C: missing budget and rooms routes to preferences",
			lead: leadWith(models.Candidates{
				models.FieldConsentimiento: true,
				models.FieldNombre:         "Juan",
				models.FieldCelular:        "+51987654321",
				models.FieldDistrito:       "Miraflores",
				models.FieldTipoInmueble:   "departamento",
			}),
			message:    "sigo buscando",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetPreferences,
		},
		{
			name: "scenario D: enriched lead with farewell ends",
			lead: leadWith(models.Candidates{
				models.FieldConsentimiento: true,
				models.FieldNombre:         "Juan",
				models.FieldCelular:        "+51987654321",
				models.FieldDistrito:       "Miraflores",
				models.FieldTipoInmueble:   "departamento",
				models.FieldHabitaciones:   3,
				models.FieldPresupuestoMax: 300000.0,
				models.FieldMetraje:        90,
			}),
			message:    "gracias, listo",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetEnd,
		},
		{
			name: "keyword heuristic: budget words route to preferences",
			lead: leadWith(models.Candidates{
				models.FieldConsentimiento: true,
				models.FieldNombre:         "Juan",
				models.FieldCelular:        "+51987654321",
				models.FieldDistrito:       "Miraflores",
				models.FieldTipoInmueble:   "departamento",
				models.FieldHabitaciones:   3,
				models.FieldPresupuestoMin: 100000.0,
				models.FieldPresupuestoMax: 300000.0,
			}),
			message:    "una consulta sobre el precio",
			lastTarget: models.TargetSupervisor,
			want:       models.TargetEnd, // enriched beats keywords in the cascade
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := fallbackTarget(tt.lead, tt.message, tt.lastTarget)
			if got != tt.want {
				t.Errorf("fallbackTarget() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFallbackConsentPrecedence(t *testing.T) {
	// A lead missing consent routes to legal regardless of everything else.
	lead := leadWith(models.Candidates{
		models.FieldNombre:         "Juan",
		models.FieldCelular:        "+51987654321",
		models.FieldDistrito:       "Miraflores",
		models.FieldTipoInmueble:   "departamento",
		models.FieldHabitaciones:   3,
		models.FieldPresupuestoMax: 300000.0,
	})
	got, _ := fallbackTarget(lead, "quiero ver opciones de precio en otra zona", models.TargetSupervisor)
	if got != models.TargetLegal {
		t.Errorf("lead without consent routed to %s, want legal", got)
	}
}

func TestDecideUsesLLM(t *testing.T) {
	llm := &mockLLM{route: genai.RouteDecision{Target: "location", Rationale: "pregunta por distritos"}}
	router := NewRouter(llm, nil)
	sess := newTestSession()

	decision := router.Decide(context.Background(), sess, sess.Lead, "¿qué distritos recomiendas?")
	if decision.Target != models.TargetLocation {
		t.Errorf("target = %s, want location", decision.Target)
	}
	if llm.routeCalls != 1 {
		t.Errorf("routeCalls = %d, want 1", llm.routeCalls)
	}
	if len(sess.RoutingLog) != 1 {
		t.Fatalf("routing log has %d entries, want 1", len(sess.RoutingLog))
	}
	if sess.RoutingLog[0].Rationale != "pregunta por distritos" {
		t.Errorf("rationale = %q", sess.RoutingLog[0].Rationale)
	}
}

func TestDecideFallsBackOnLLMError(t *testing.T) {
	// Scenario E: a failing LLM decision still yields a valid target.
	llm := &mockLLM{routeErr: errors.New("timeout")}
	router := NewRouter(llm, nil)
	sess := newTestSession()

	decision := router.Decide(context.Background(), sess, sess.Lead, "Hola")
	if decision.Target != models.TargetLegal {
		t.Errorf("target = %s, want legal from fallback", decision.Target)
	}
}

func TestDecideFallsBackOnInvalidTarget(t *testing.T) {
	llm := &mockLLM{route: genai.RouteDecision{Target: "supervisor"}}
	router := NewRouter(llm, nil)
	sess := newTestSession()

	decision := router.Decide(context.Background(), sess, sess.Lead, "Hola")
	if !models.IsValidTarget(decision.Target) {
		t.Errorf("invalid LLM target leaked through: %s", decision.Target)
	}
	if decision.Target != models.TargetLegal {
		t.Errorf("target = %s, want legal", decision.Target)
	}
}

func TestDecideWithoutLLMUsesFallback(t *testing.T) {
	router := NewRouter(nil, nil)
	sess := newTestSession()

	decision := router.Decide(context.Background(), sess, sess.Lead, "Hola")
	if decision.Target != models.TargetLegal {
		t.Errorf("target = %s, want legal", decision.Target)
	}
	if len(sess.RoutingLog) != 1 {
		t.Errorf("routing log has %d entries, want 1", len(sess.RoutingLog))
	}
}

func TestRoutingLogTruncatesMessage(t *testing.T) {
	router := NewRouter(nil, nil)
	sess := newTestSession()

	long := ""
	for i := 0; i < 20; i++ {
		long += "presupuesto "
	}
	router.Decide(context.Background(), sess, sess.Lead, long)
	entry := sess.RoutingLog[0]
	if len([]rune(entry.Message)) > models.RoutingLogMessageLimit+3 {
		t.Errorf("logged message not truncated: %d runes", len([]rune(entry.Message)))
	}
}

package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
)

type mockLLM struct {
	reply string
	err   error
}

func (m *mockLLM) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return m.reply, m.err
}

func (m *mockLLM) DecideRoute(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (genai.RouteDecision, error) {
	return genai.RouteDecision{}, errors.New("not used")
}

func TestNotifyHandoffSendsSummary(t *testing.T) {
	sender := NewMockClient()
	notifier := NewAdvisorNotifier(sender, nil, "+51999888777")

	err := notifier.NotifyHandoff(context.Background(), "s_abc", map[string]any{
		"nombre":        "Ana Torres",
		"tipo_inmueble": "departamento",
	})
	if err != nil {
		t.Fatalf("NotifyHandoff failed: %v", err)
	}
	if len(sender.SentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.SentMessages))
	}
	msg := sender.SentMessages[0]
	if msg.To != "+51999888777" {
		t.Errorf("sent to %s", msg.To)
	}
	if !strings.Contains(msg.Body, "s_abc") || !strings.Contains(msg.Body, "Ana Torres") {
		t.Errorf("summary missing expected content: %q", msg.Body)
	}
}

func TestNotifyHandoffUsesLLMSummary(t *testing.T) {
	sender := NewMockClient()
	notifier := NewAdvisorNotifier(sender, &mockLLM{reply: "Resumen: lead listo para contacto"}, "+51999888777")

	if err := notifier.NotifyHandoff(context.Background(), "s_abc", map[string]any{"nombre": "Ana"}); err != nil {
		t.Fatalf("NotifyHandoff failed: %v", err)
	}
	if len(sender.SentMessages) != 1 || !strings.Contains(sender.SentMessages[0].Body, "Resumen: lead listo") {
		t.Errorf("LLM summary not used: %+v", sender.SentMessages)
	}
}

func TestNotifyHandoffFallsBackWhenLLMFails(t *testing.T) {
	sender := NewMockClient()
	notifier := NewAdvisorNotifier(sender, &mockLLM{err: errors.New("timeout")}, "+51999888777")

	if err := notifier.NotifyHandoff(context.Background(), "s_abc", map[string]any{"nombre": "Ana"}); err != nil {
		t.Fatalf("NotifyHandoff failed: %v", err)
	}
	if len(sender.SentMessages) != 1 || !strings.Contains(sender.SentMessages[0].Body, "nombre: Ana") {
		t.Errorf("plain fallback not used: %+v", sender.SentMessages)
	}
}

func TestNotifyHandoffNilNotifier(t *testing.T) {
	var notifier *AdvisorNotifier
	if err := notifier.NotifyHandoff(context.Background(), "s_abc", nil); err != nil {
		t.Errorf("nil notifier should be a no-op, got %v", err)
	}
}

func TestNewClientMissingCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("sid"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
}

type failingSender struct{}

func (failingSender) SendMessage(ctx context.Context, to, body string) error {
	return errors.New("network down")
}

func TestNotifyHandoffPropagatesSendError(t *testing.T) {
	notifier := NewAdvisorNotifier(failingSender{}, nil, "+51999888777")
	err := notifier.NotifyHandoff(context.Background(), "s_abc", map[string]any{"nombre": "Ana"})
	if err == nil || !strings.Contains(err.Error(), "network down") {
		t.Errorf("expected send error, got %v", err)
	}
}

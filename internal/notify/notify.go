// Package notify delivers advisor handoff notifications over WhatsApp using
// the Twilio API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"

	"github.com/openai/openai-go"
)

// Sender sends a WhatsApp message to a recipient.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number ("whatsapp:+14155238886").
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	client    *twilio.RestClient
	fromWhats string
}

// NewClient creates a Twilio WhatsApp client. Options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Notify.NewClient: Twilio config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{client: client, fromWhats: cfg.FromWhats}, nil
}

// SendMessage sends a WhatsApp message using the Twilio API.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Notify.SendMessage: Twilio send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Notify.SendMessage: message sent", "to", to)
	return nil
}

// MockClient records messages instead of sending them.
type MockClient struct {
	SentMessages []SentMessage
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient creates an empty mock sender.
func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// AdvisorNotifier sends a lead summary to a human advisor when a
// conversation ends with a core-complete lead. A nil notifier is valid and
// does nothing.
type AdvisorNotifier struct {
	sender    Sender
	llm       genai.ClientInterface
	advisorTo string
}

// NewAdvisorNotifier wires a sender and an optional LLM summarizer to the
// advisor's WhatsApp number.
func NewAdvisorNotifier(sender Sender, llm genai.ClientInterface, advisorTo string) *AdvisorNotifier {
	return &AdvisorNotifier{sender: sender, llm: llm, advisorTo: advisorTo}
}

const summarySystemPrompt = `Eres un asistente que prepara resúmenes de leads inmobiliarios para asesores comerciales en Perú.
Recibirás los datos capturados de un lead. Escribe un resumen breve (máximo 5 líneas) en español con los datos clave:
nombre, contacto, tipo de inmueble, ubicación, presupuesto y siguiente paso sugerido. No inventes datos.`

// NotifyHandoff builds the lead summary and sends it to the advisor. Errors
// are returned for logging but the caller treats delivery as best effort.
func (n *AdvisorNotifier) NotifyHandoff(ctx context.Context, sessionID string, leadFields map[string]any) error {
	if n == nil || n.sender == nil || n.advisorTo == "" {
		return nil
	}

	summary := n.buildSummary(ctx, leadFields)
	body := fmt.Sprintf("Nuevo lead calificado (sesión %s):\n%s", sessionID, summary)
	if err := n.sender.SendMessage(ctx, n.advisorTo, body); err != nil {
		return fmt.Errorf("advisor handoff failed: %w", err)
	}
	slog.Info("AdvisorNotifier.NotifyHandoff: lead handed off", "sessionID", sessionID, "advisor", n.advisorTo)
	return nil
}

// buildSummary prefers an LLM summary and falls back to a plain field list.
func (n *AdvisorNotifier) buildSummary(ctx context.Context, leadFields map[string]any) string {
	plain := formatFields(leadFields)
	if n.llm == nil {
		return plain
	}
	summary, err := n.llm.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(summarySystemPrompt),
		openai.UserMessage(plain),
	})
	if err != nil {
		slog.Warn("AdvisorNotifier.buildSummary: LLM summary failed, using plain format", "error", err)
		return plain
	}
	return summary
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, fields[k])
	}
	if b.Len() == 0 {
		return "- sin datos capturados\n"
	}
	return b.String()
}

// Package genai wraps the OpenAI chat completions API for reply generation
// and structured routing decisions.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Sentinel errors for LLM interaction failures.
var (
	// ErrNoChoicesReturned indicates the API responded without any choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrNoValidResponse indicates the model produced output that could not
	// be interpreted (empty content or malformed routing JSON).
	ErrNoValidResponse = errors.New("no valid response from model")
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the OpenAI SDK client to chatService.
type openaiChatService struct {
	client openai.Client
}

func (s *openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// RouteDecision is the structured output of a routing call.
type RouteDecision struct {
	Target    string `json:"next"`
	Rationale string `json:"reasoning"`
}

// ClientInterface defines the operations the conversation flow needs from
// the LLM layer. Tests substitute a mock.
type ClientInterface interface {
	// GenerateWithMessages produces a free-text reply for the given
	// conversation context.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// DecideRoute asks the model for a routing decision as strict JSON.
	DecideRoute(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (RouteDecision, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat    chatService
	model   openai.ChatModel
	timeout time.Duration
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly, overriding the
// OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewClient initializes a GenAI client. The API key is taken from options or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI.NewClient: client initialized", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{
		chat:    &openaiChatService{client: cli},
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// GenerateWithMessages produces a reply for the given message sequence.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.effectiveTimeout())
	defer cancel()

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI.GenerateWithMessages: API call failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrNoValidResponse
	}
	slog.Debug("GenAI.GenerateWithMessages: reply generated", "length", len(content))
	return content, nil
}

// DecideRoute requests a routing decision in JSON object mode and parses it.
// A malformed or empty decision surfaces as ErrNoValidResponse so the caller
// can fall back deterministically.
func (c *Client) DecideRoute(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (RouteDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.effectiveTimeout())
	defer cancel()

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		slog.Error("GenAI.DecideRoute: API call failed", "error", err)
		return RouteDecision{}, fmt.Errorf("routing completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return RouteDecision{}, ErrNoChoicesReturned
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var decision RouteDecision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		slog.Warn("GenAI.DecideRoute: malformed routing JSON", "content", content, "error", err)
		return RouteDecision{}, fmt.Errorf("%w: %s", ErrNoValidResponse, content)
	}
	if decision.Target == "" {
		return RouteDecision{}, ErrNoValidResponse
	}
	slog.Debug("GenAI.DecideRoute: decision parsed", "target", decision.Target)
	return decision, nil
}

func (c *Client) effectiveTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return DefaultTimeout
}

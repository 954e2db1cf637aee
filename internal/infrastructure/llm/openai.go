package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

// Config selects an OpenAI-compatible chat completions endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Generator calls chat completions on an OpenAI-compatible API such as Groq.
type Generator struct {
	client openai.Client
	model  string
}

var _ ports.TextGenerator = (*Generator)(nil)

// New returns a Generator, or Unavailable when no API key is configured.
func New(cfg Config) ports.TextGenerator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Unavailable{}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "llm.openai"), slog.String("model", g.model))
	started := time.Now()

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errs.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	logging.Debug(logCtx, "chat completion finished",
		slog.Duration("elapsed", time.Since(started)),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// Unavailable is the generator used when no API key is configured.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, ports.GenerateRequest) (string, error) {
	return "", ports.ErrGeneratorUnavailable
}

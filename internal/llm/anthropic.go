package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jbweber/vmchat/internal/config"
)

// AnthropicProvider speaks the Anthropic messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(cfg config.LLMConfig, opts ...option.RequestOption) *AnthropicProvider {
	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.RequestTimeout.Std()))
	}
	clientOpts = append(clientOpts, opts...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(clientOpts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Model() string { return p.model }

// Generate sends the history and returns the concatenated text blocks.
// System messages become the request's system prompt.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	return p.send(ctx, messages, p.maxTokens)
}

// Check sends a one-token request; the API rejects unknown models.
func (p *AnthropicProvider) Check(ctx context.Context) error {
	_, err := p.send(ctx, []Message{{Role: RoleUser, Content: "ping"}}, 1)
	if err != nil && !errors.Is(err, ErrEmptyResponse) {
		return fmt.Errorf("%w: %s: %v", ErrModelNotFound, p.model, err)
	}
	return nil
}

func (p *AnthropicProvider) send(ctx context.Context, messages []Message, maxTokens int64) (string, error) {
	var system []anthropic.TextBlockParam
	var history []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			history = append(history, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			history = append(history, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  history,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jbweber/vmchat/internal/config"
)

// ollamaAPIKey is sent to Ollama, which ignores it but the client requires one.
const ollamaAPIKey = "ollama"

// OpenAIProvider speaks the OpenAI chat completions API.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI creates a provider for OpenAI or an OpenAI-compatible server.
// For Ollama the base URL gets the /v1 suffix its compatibility API lives under.
func NewOpenAI(cfg config.LLMConfig, opts ...option.RequestOption) *OpenAIProvider {
	apiKey := cfg.APIKey
	baseURL := cfg.BaseURL
	if cfg.Provider == config.ProviderOllama {
		if apiKey == "" {
			apiKey = ollamaAPIKey
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	if cfg.RequestTimeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.RequestTimeout.Std()))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIProvider{
		client:    openai.NewClient(clientOpts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

func (p *OpenAIProvider) Model() string { return p.model }

// Generate sends the history and returns the first choice's text.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: toOpenAIMessages(messages),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(p.maxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Check lists the served models and looks for the configured one. A
// model ID matches when it starts with the configured name, so "llama3"
// finds "llama3:latest".
func (p *OpenAIProvider) Check(ctx context.Context) error {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range page.Data {
		if strings.HasPrefix(m.ID, p.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrModelNotFound, p.model)
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

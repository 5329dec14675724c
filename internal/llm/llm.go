// Package llm talks to the chat model that proposes multipass commands.
//
// Two wire protocols are supported: the OpenAI chat completions API, which
// both OpenAI and Ollama (under /v1) serve, and the Anthropic messages API.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/vmchat/internal/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyResponse is returned when the model replies with no text.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrModelNotFound is returned by Check when the configured model is not served.
	ErrModelNotFound = errors.New("model not found")
)

// Message is one entry of a chat history.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Provider generates chat replies.
type Provider interface {
	// Generate returns the model's reply to the history
	Generate(ctx context.Context, messages []Message) (string, error)

	// Check verifies that the model is reachable and served
	Check(ctx context.Context) error

	// Model returns the configured model name
	Model() string
}

// New returns the provider selected by cfg.Provider.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOllama, config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3/option"

	"github.com/jbweber/vmchat/internal/config"
)

// recorder captures the JSON bodies a fake server receives.
type recorder struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
}

func (r *recorder) record(req *http.Request) map[string]any {
	var body map[string]any
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, body)
	return body
}

func (r *recorder) last() (string, map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return "", nil
	}
	return r.paths[len(r.paths)-1], r.bodies[len(r.bodies)-1]
}

func newOpenAIServer(t *testing.T, rec *recorder, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			rec.record(r)
			choices := []map[string]any{}
			if reply != "" {
				choices = append(choices, map[string]any{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": reply},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   "llama3",
				"choices": choices,
			})
		case "/v1/models":
			rec.record(r)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data": []map[string]any{
					{"id": "llama3:latest", "object": "model", "created": 1, "owned_by": "library"},
					{"id": "mistral:7b", "object": "model", "created": 1, "owned_by": "library"},
				},
			})
		default:
			http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func ollamaConfig(baseURL, model string) config.LLMConfig {
	return config.LLMConfig{
		Provider:       config.ProviderOllama,
		BaseURL:        baseURL,
		Model:          model,
		RequestTimeout: config.Duration(5 * time.Second),
		MaxTokens:      256,
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	rec := &recorder{}
	server := newOpenAIServer(t, rec, "  ```bash\nmultipass list\n```  ")
	p := NewOpenAI(ollamaConfig(server.URL, "llama3"), option.WithMaxRetries(0))

	got, err := p.Generate(t.Context(), []Message{
		{Role: RoleSystem, Content: "You manage VMs."},
		{Role: RoleUser, Content: "show my vms"},
		{Role: RoleAssistant, Content: "Sure."},
		{Role: RoleUser, Content: "all of them"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if got != "```bash\nmultipass list\n```" {
		t.Errorf("Generate() = %q, want trimmed reply", got)
	}

	path, body := rec.last()
	if path != "/v1/chat/completions" {
		t.Errorf("path = %q, want /v1/chat/completions", path)
	}
	if body["model"] != "llama3" {
		t.Errorf("model = %v, want llama3", body["model"])
	}
	if body["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v, want 256", body["max_tokens"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	wantRoles := []string{RoleSystem, RoleUser, RoleAssistant, RoleUser}
	for i, m := range msgs {
		role, _ := m.(map[string]any)["role"].(string)
		if role != wantRoles[i] {
			t.Errorf("messages[%d].role = %q, want %q", i, role, wantRoles[i])
		}
	}
}

func TestOpenAIProvider_GenerateEmpty(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "no choices", reply: ""},
		{name: "blank content", reply: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newOpenAIServer(t, &recorder{}, tt.reply)
			p := NewOpenAI(ollamaConfig(server.URL, "llama3"), option.WithMaxRetries(0))

			_, err := p.Generate(t.Context(), []Message{{Role: RoleUser, Content: "hi"}})

			if !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
			}
		})
	}
}

func TestOpenAIProvider_GenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model crashed"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()
	p := NewOpenAI(ollamaConfig(server.URL, "llama3"), option.WithMaxRetries(0))

	_, err := p.Generate(t.Context(), []Message{{Role: RoleUser, Content: "hi"}})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want a transport error", err)
	}
}

func TestOpenAIProvider_Check(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		wantErr error
	}{
		{name: "prefix match", model: "llama3"},
		{name: "exact match", model: "mistral:7b"},
		{name: "missing model", model: "mistral-faiss-rag:latest", wantErr: ErrModelNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newOpenAIServer(t, &recorder{}, "")
			p := NewOpenAI(ollamaConfig(server.URL, tt.model), option.WithMaxRetries(0))

			err := p.Check(t.Context())

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Check() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIProvider_OpenAIBaseURLUnchanged(t *testing.T) {
	rec := &recorder{}
	server := newOpenAIServer(t, rec, "ok")
	cfg := ollamaConfig(server.URL+"/v1", "gpt-4o-mini")
	cfg.Provider = config.ProviderOpenAI
	cfg.APIKey = "sk-test"
	p := NewOpenAI(cfg, option.WithMaxRetries(0))

	if _, err := p.Generate(t.Context(), []Message{{Role: RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if path, _ := rec.last(); path != "/v1/chat/completions" {
		t.Errorf("path = %q, want /v1/chat/completions", path)
	}
}

func newAnthropicServer(t *testing.T, rec *recorder, status int, text string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
			return
		}
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":  "error",
				"error": map[string]any{"type": "not_found_error", "message": "model: nope"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": text}},
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 2},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func anthropicConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:       config.ProviderAnthropic,
		BaseURL:        baseURL,
		Model:          "claude-test",
		APIKey:         "test-key",
		RequestTimeout: config.Duration(5 * time.Second),
		MaxTokens:      512,
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	rec := &recorder{}
	server := newAnthropicServer(t, rec, http.StatusOK, "multipass start web1")
	p := NewAnthropic(anthropicConfig(server.URL), anthropicoption.WithMaxRetries(0))

	got, err := p.Generate(t.Context(), []Message{
		{Role: RoleSystem, Content: "You manage VMs."},
		{Role: RoleUser, Content: "start web1"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "multipass start web1" {
		t.Errorf("Generate() = %q, want multipass start web1", got)
	}

	_, body := rec.last()
	if body["model"] != "claude-test" {
		t.Errorf("model = %v, want claude-test", body["model"])
	}
	if body["max_tokens"] != float64(512) {
		t.Errorf("max_tokens = %v, want 512", body["max_tokens"])
	}
	if system, _ := body["system"].([]any); len(system) != 1 {
		t.Errorf("system = %v, want the system prompt", body["system"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("messages = %v, want only the user turn", body["messages"])
	}
}

func TestAnthropicProvider_GenerateEmpty(t *testing.T) {
	server := newAnthropicServer(t, &recorder{}, http.StatusOK, " ")
	p := NewAnthropic(anthropicConfig(server.URL), anthropicoption.WithMaxRetries(0))

	if _, err := p.Generate(t.Context(), []Message{{Role: RoleUser, Content: "hi"}}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
	}
}

func TestAnthropicProvider_Check(t *testing.T) {
	t.Run("model served", func(t *testing.T) {
		rec := &recorder{}
		server := newAnthropicServer(t, rec, http.StatusOK, "pong")
		p := NewAnthropic(anthropicConfig(server.URL), anthropicoption.WithMaxRetries(0))

		if err := p.Check(t.Context()); err != nil {
			t.Errorf("Check() error = %v, want nil", err)
		}
		if _, body := rec.last(); body["max_tokens"] != float64(1) {
			t.Errorf("max_tokens = %v, want 1", body["max_tokens"])
		}
	})

	t.Run("model rejected", func(t *testing.T) {
		server := newAnthropicServer(t, &recorder{}, http.StatusNotFound, "")
		p := NewAnthropic(anthropicConfig(server.URL), anthropicoption.WithMaxRetries(0))

		if err := p.Check(t.Context()); !errors.Is(err, ErrModelNotFound) {
			t.Errorf("Check() error = %v, want ErrModelNotFound", err)
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{provider: config.ProviderOllama, want: "*llm.OpenAIProvider"},
		{provider: config.ProviderOpenAI, want: "*llm.OpenAIProvider"},
		{provider: config.ProviderAnthropic, want: "*llm.AnthropicProvider"},
		{provider: "bard", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := New(config.LLMConfig{Provider: tt.provider, Model: "m", BaseURL: "http://localhost:11434"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := typeName(p); got != tt.want {
				t.Errorf("New() = %s, want %s", got, tt.want)
			}
			if p.Model() != "m" {
				t.Errorf("Model() = %q, want m", p.Model())
			}
		})
	}
}

func typeName(p Provider) string {
	switch p.(type) {
	case *OpenAIProvider:
		return "*llm.OpenAIProvider"
	case *AnthropicProvider:
		return "*llm.AnthropicProvider"
	default:
		return "unknown"
	}
}

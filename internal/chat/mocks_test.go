package chat

import (
	"context"
	"slices"
	"sync"

	"github.com/jbweber/vmchat/internal/llm"
	"github.com/jbweber/vmchat/internal/pipeline"
)

// mockProvider is a mock implementation of llm.Provider for testing.
type mockProvider struct {
	mu sync.Mutex

	// Configurable behavior
	generateFunc func(ctx context.Context, messages []llm.Message) (string, error)
	checkFunc    func(ctx context.Context) error

	// Call tracking
	generateCalls [][]llm.Message
}

// newMockProvider creates a provider that always answers reply.
func newMockProvider(reply string) *mockProvider {
	return &mockProvider{
		generateFunc: func(ctx context.Context, messages []llm.Message) (string, error) {
			return reply, nil
		},
		checkFunc: func(ctx context.Context) error { return nil },
	}
}

func (m *mockProvider) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	m.generateCalls = append(m.generateCalls, slices.Clone(messages))
	fn := m.generateFunc
	m.mu.Unlock()
	return fn(ctx, messages)
}

func (m *mockProvider) Check(ctx context.Context) error {
	return m.checkFunc(ctx)
}

func (m *mockProvider) Model() string { return "test-model" }

// mockSubmitter is a mock implementation of Submitter for testing.
type mockSubmitter struct {
	mu sync.Mutex

	submitFunc func(ctx context.Context, text string) pipeline.Submission

	submitCalls []string
}

func newMockSubmitter() *mockSubmitter {
	return &mockSubmitter{
		submitFunc: func(ctx context.Context, text string) pipeline.Submission {
			return pipeline.Submission{Results: []pipeline.Result{}}
		},
	}
}

func (m *mockSubmitter) Submit(ctx context.Context, text string) pipeline.Submission {
	m.mu.Lock()
	m.submitCalls = append(m.submitCalls, text)
	fn := m.submitFunc
	m.mu.Unlock()
	return fn(ctx, text)
}

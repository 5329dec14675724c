package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
	"github.com/jbweber/vmchat/internal/status"
)

// mockOperator is a mock implementation of the Operator interface for testing.
type mockOperator struct {
	mu sync.Mutex

	// Configurable behavior
	provisionFunc func(ctx context.Context, cmd command.Command) status.Record
	controlFunc   func(ctx context.Context, cmd command.Command) executor.Outcome
	queryFunc     func(ctx context.Context, cmd command.Command) executor.Outcome

	// Call tracking
	provisionCalls []command.Command
	controlCalls   []command.Command
	queryCalls     []command.Command
}

// newMockOperator creates a mock whose operations all succeed. Provision
// records Completed on tracker.
func newMockOperator(tracker *status.Tracker) *mockOperator {
	m := &mockOperator{}

	m.provisionFunc = func(ctx context.Context, cmd command.Command) status.Record {
		rec, err := tracker.Transition(cmd.Name, status.StateCompleted, "VM \""+cmd.Name+"\" created successfully", nil)
		if err != nil {
			return tracker.Get(cmd.Name)
		}
		return rec
	}
	m.controlFunc = func(ctx context.Context, cmd command.Command) executor.Outcome {
		return executor.Outcome{Kind: executor.KindSuccess}
	}
	m.queryFunc = func(ctx context.Context, cmd command.Command) executor.Outcome {
		return executor.Outcome{Kind: executor.KindSuccess, Stdout: `{"list": []}`}
	}

	return m
}

func (m *mockOperator) Provision(ctx context.Context, cmd command.Command) status.Record {
	m.mu.Lock()
	m.provisionCalls = append(m.provisionCalls, cmd)
	fn := m.provisionFunc
	m.mu.Unlock()
	return fn(ctx, cmd)
}

func (m *mockOperator) Control(ctx context.Context, cmd command.Command) executor.Outcome {
	m.mu.Lock()
	m.controlCalls = append(m.controlCalls, cmd)
	fn := m.controlFunc
	m.mu.Unlock()
	return fn(ctx, cmd)
}

func (m *mockOperator) Query(ctx context.Context, cmd command.Command) executor.Outcome {
	m.mu.Lock()
	m.queryCalls = append(m.queryCalls, cmd)
	fn := m.queryFunc
	m.mu.Unlock()
	return fn(ctx, cmd)
}

func (m *mockOperator) provisioned() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.provisionCalls)
}

// mockRunner stands in for the executor underneath a real vm.Manager.
type mockRunner struct {
	mu sync.Mutex

	// Configurable behavior
	executeFunc func(ctx context.Context, cmd command.Command) executor.Outcome

	// Call tracking
	executeCalls []string // format: "operation name"
}

// newMockRunner creates a runner that succeeds and reports a running
// instance from info.
func newMockRunner() *mockRunner {
	m := &mockRunner{}

	m.executeFunc = func(ctx context.Context, cmd command.Command) executor.Outcome {
		if cmd.Operation == command.OpInfo {
			return executor.Outcome{
				Kind:   executor.KindSuccess,
				Stdout: `{"errors": [], "info": {"` + cmd.Name + `": {"state": "Running", "ipv4": ["10.0.0.5"]}}}`,
			}
		}
		return executor.Outcome{Kind: executor.KindSuccess}
	}

	return m
}

func (m *mockRunner) Execute(ctx context.Context, cmd command.Command) executor.Outcome {
	m.mu.Lock()
	m.executeCalls = append(m.executeCalls, strings.TrimSpace(string(cmd.Operation)+" "+cmd.Name))
	fn := m.executeFunc
	m.mu.Unlock()
	return fn(ctx, cmd)
}

func (m *mockRunner) Run(ctx context.Context, timeout time.Duration, args ...string) executor.Outcome {
	return executor.Outcome{Kind: executor.KindSuccess}
}

func (m *mockRunner) Timeout(op command.Operation) time.Duration {
	return time.Second
}

func (m *mockRunner) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executeCalls...)
}

package server

import (
	"context"
	"sync"

	"github.com/jbweber/vmchat/internal/chat"
	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

// mockPipeline is a mock implementation of the Pipeline interface for
// testing. Prepare uses the real normalizer and classifier.
type mockPipeline struct {
	mu sync.Mutex

	// Configurable behavior
	submitFunc   func(ctx context.Context, text string) pipeline.Submission
	dispatchFunc func(ctx context.Context, cmd command.Command) (pipeline.Result, error)
	statusFunc   func(name string) status.Record
	tasks        map[string]pipeline.TaskStatus
	waitFunc     func(ctx context.Context) error

	// Call tracking
	submitCalls   []string
	dispatchCalls []command.Command
}

func newMockPipeline() *mockPipeline {
	m := &mockPipeline{tasks: make(map[string]pipeline.TaskStatus)}

	m.submitFunc = func(ctx context.Context, text string) pipeline.Submission {
		return pipeline.Submission{Results: []pipeline.Result{}}
	}
	m.dispatchFunc = func(ctx context.Context, cmd command.Command) (pipeline.Result, error) {
		res := pipeline.Result{Canonical: cmd.Canonical, Operation: cmd.Operation, Name: cmd.Name}
		if cmd.Operation == command.OpLaunch {
			res.Status = pipeline.StatusStarted
			res.TaskID = "task-1"
			return res, nil
		}
		res.Outcome = &executor.Outcome{Kind: executor.KindSuccess}
		return res, nil
	}
	m.statusFunc = func(name string) status.Record {
		return status.Record{Name: name, State: status.StateUnknown, Message: status.NotFoundMessage}
	}
	m.waitFunc = func(ctx context.Context) error { return nil }

	return m
}

func (m *mockPipeline) Submit(ctx context.Context, text string) pipeline.Submission {
	m.mu.Lock()
	m.submitCalls = append(m.submitCalls, text)
	fn := m.submitFunc
	m.mu.Unlock()
	return fn(ctx, text)
}

func (m *mockPipeline) Prepare(text string) (command.Command, *command.Rejection) {
	return command.Normalizer{}.Parse(text)
}

func (m *mockPipeline) Dispatch(ctx context.Context, cmd command.Command) (pipeline.Result, error) {
	m.mu.Lock()
	m.dispatchCalls = append(m.dispatchCalls, cmd)
	fn := m.dispatchFunc
	m.mu.Unlock()
	return fn(ctx, cmd)
}

func (m *mockPipeline) Status(name string) status.Record {
	return m.statusFunc(name)
}

func (m *mockPipeline) TaskStatus(id string) (pipeline.TaskStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.tasks[id]
	return ts, ok
}

func (m *mockPipeline) Tasks() []pipeline.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pipeline.TaskStatus, 0, len(m.tasks))
	for _, ts := range m.tasks {
		out = append(out, ts)
	}
	return out
}

func (m *mockPipeline) Wait(ctx context.Context) error {
	return m.waitFunc(ctx)
}

func (m *mockPipeline) dispatched() []command.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]command.Command(nil), m.dispatchCalls...)
}

// mockInstances is a mock implementation of the Instances interface for testing.
type mockInstances struct {
	listFunc         func(ctx context.Context) ([]vm.Instance, error)
	listDetailedFunc func(ctx context.Context) ([]vm.Instance, error)
	infoFunc         func(ctx context.Context, name string) (vm.Instance, error)
}

func newMockInstances(instances ...vm.Instance) *mockInstances {
	return &mockInstances{
		listFunc: func(ctx context.Context) ([]vm.Instance, error) {
			return instances, nil
		},
		listDetailedFunc: func(ctx context.Context) ([]vm.Instance, error) {
			return instances, nil
		},
		infoFunc: func(ctx context.Context, name string) (vm.Instance, error) {
			for _, inst := range instances {
				if inst.Name() == name {
					return inst, nil
				}
			}
			return vm.Instance{}, vm.ErrNotFound
		},
	}
}

func (m *mockInstances) List(ctx context.Context) ([]vm.Instance, error) {
	return m.listFunc(ctx)
}

func (m *mockInstances) ListDetailed(ctx context.Context) ([]vm.Instance, error) {
	return m.listDetailedFunc(ctx)
}

func (m *mockInstances) Info(ctx context.Context, name string) (vm.Instance, error) {
	return m.infoFunc(ctx, name)
}

// mockChat is a mock implementation of the Chat interface for testing.
type mockChat struct {
	sendFunc func(ctx context.Context, sessionID, message string) (chat.Reply, error)
}

func newMockChat() *mockChat {
	return &mockChat{
		sendFunc: func(ctx context.Context, sessionID, message string) (chat.Reply, error) {
			if sessionID == "" {
				return chat.Reply{}, chat.ErrSessionRequired
			}
			return chat.Reply{Response: "echo: " + message, Executed: []chat.Executed{}}, nil
		},
	}
}

func (m *mockChat) Send(ctx context.Context, sessionID, message string) (chat.Reply, error) {
	return m.sendFunc(ctx, sessionID, message)
}

func (m *mockChat) Model() string { return "test-model" }

// mockHealth returns a fixed report.
type mockHealth struct {
	report health.Report
}

func (m mockHealth) Check(ctx context.Context) health.Report { return m.report }

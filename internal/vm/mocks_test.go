package vm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
)

const testListJSON = `{
    "list": [
        {
            "ipv4": ["10.0.0.5"],
            "name": "web1",
            "release": "Ubuntu 22.04.4 LTS",
            "state": "Running"
        },
        {
            "ipv4": [],
            "name": "db1",
            "release": "Ubuntu 24.04 LTS",
            "state": "Stopped"
        }
    ]
}`

// testInfoJSON returns multipass info output for a running instance.
func testInfoJSON(name string) string {
	return fmt.Sprintf(`{
    "errors": [],
    "info": {
        %q: {
            "cpu_count": "2",
            "disks": {
                "sda1": {"total": "5019643904", "used": "1866752000"}
            },
            "image_hash": "abc123",
            "image_release": "22.04 LTS",
            "ipv4": ["10.0.0.5"],
            "memory": {"total": 1002180608, "used": 183644160},
            "release": "Ubuntu 22.04.4 LTS",
            "state": "Running"
        }
    }
}`, name)
}

func success(stdout string) executor.Outcome {
	return executor.Outcome{Kind: executor.KindSuccess, Stdout: stdout}
}

func failure(stderr string) executor.Outcome {
	return executor.Outcome{Kind: executor.KindNonZeroExit, ExitCode: 2, Stderr: stderr}
}

// mockRunner is a mock implementation of the Runner interface for testing.
type mockRunner struct {
	mu sync.Mutex

	// Configurable behavior
	executeFunc func(ctx context.Context, cmd command.Command) executor.Outcome
	runFunc     func(ctx context.Context, timeout time.Duration, args ...string) executor.Outcome

	// Call tracking
	executeCalls []command.Command
	runCalls     []string // format: "arg arg arg"
}

// newMockRunner creates a new mock runner with default behavior.
func newMockRunner() *mockRunner {
	m := &mockRunner{}

	// Default: list and info describe running instances, everything else succeeds
	m.executeFunc = func(ctx context.Context, cmd command.Command) executor.Outcome {
		switch cmd.Operation {
		case command.OpList:
			return success(testListJSON)
		case command.OpInfo:
			return success(testInfoJSON(cmd.Name))
		default:
			return success("")
		}
	}

	// Default: raw runs succeed
	m.runFunc = func(ctx context.Context, timeout time.Duration, args ...string) executor.Outcome {
		return success("multipass   1.14.0\nmultipassd  1.14.0")
	}

	return m
}

func (m *mockRunner) Execute(ctx context.Context, cmd command.Command) executor.Outcome {
	m.mu.Lock()
	m.executeCalls = append(m.executeCalls, cmd)
	fn := m.executeFunc
	m.mu.Unlock()
	return fn(ctx, cmd)
}

func (m *mockRunner) Run(ctx context.Context, timeout time.Duration, args ...string) executor.Outcome {
	m.mu.Lock()
	m.runCalls = append(m.runCalls, strings.Join(args, " "))
	fn := m.runFunc
	m.mu.Unlock()
	return fn(ctx, timeout, args...)
}

func (m *mockRunner) Timeout(op command.Operation) time.Duration {
	return time.Second
}

// operations returns the executed operations in call order.
func (m *mockRunner) operations() []command.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]command.Operation, len(m.executeCalls))
	for i, c := range m.executeCalls {
		ops[i] = c.Operation
	}
	return ops
}

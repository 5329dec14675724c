package vm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
	"github.com/jbweber/vmchat/internal/status"
)

// Runner defines the control binary operations needed for VM management.
//
// In production, this is satisfied by *executor.Executor.
// In tests, this is satisfied by mock implementations.
type Runner interface {
	// Execute runs a classified command with the timeout of its class
	Execute(ctx context.Context, cmd command.Command) executor.Outcome

	// Run runs a raw argv with the given timeout
	Run(ctx context.Context, timeout time.Duration, args ...string) executor.Outcome

	// Timeout returns the timeout for an operation class
	Timeout(op command.Operation) time.Duration
}

// Lifecycle records the result of a creation.
//
// In production, this is satisfied by *status.Tracker.
type Lifecycle interface {
	// Transition moves a Creating record to Completed or Error
	Transition(name string, state status.State, message string, detail json.RawMessage) (status.Record, error)

	// Get returns the current record for name
	Get(name string) status.Record
}

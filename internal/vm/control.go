package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
)

// Control runs a synchronous lifecycle operation: start, stop, recover,
// delete (optionally purging) or purge.
//
// The outcome is returned as is; a non-zero exit is not a Go error here.
func (m *Manager) Control(ctx context.Context, cmd command.Command) executor.Outcome {
	switch cmd.Operation {
	case command.OpStart, command.OpStop, command.OpRecover, command.OpDelete, command.OpPurge:
	default:
		return executor.Outcome{
			Kind:     executor.KindInternalError,
			ExitCode: executor.ExitInternal,
			Stderr:   fmt.Sprintf("%s is not a control operation", cmd.Operation),
			Args:     []string{command.Binary, string(cmd.Operation)},
		}
	}

	m.logger.Info("Running VM operation", "operation", cmd.Operation, "name", cmd.Name, "purge", cmd.Purge)
	out := m.runner.Execute(ctx, cmd)
	if !out.OK() {
		m.logger.Warn("VM operation failed", "operation", cmd.Operation, "name", cmd.Name,
			"kind", out.Kind, "exit_code", out.ExitCode, "stderr", out.Stderr)
	}
	return out
}

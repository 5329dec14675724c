package vm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
)

type listResponse struct {
	List []json.RawMessage `json:"list"`
}

type infoResponse struct {
	Errors []json.RawMessage          `json:"errors"`
	Info   map[string]json.RawMessage `json:"info"`
}

// List lists all instances.
//
// If multipass is not installed, List returns an empty slice together with
// ErrToolNotFound so callers can report that instead of failing.
func (m *Manager) List(ctx context.Context) ([]Instance, error) {
	out := m.runner.Execute(ctx, command.Command{Operation: command.OpList})
	if err := outcomeError(out); err != nil {
		if out.Kind == executor.KindToolNotFound {
			return []Instance{}, err
		}
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	var resp listResponse
	if err := json.Unmarshal([]byte(out.Stdout), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse list output: %w", err)
	}

	instances := make([]Instance, 0, len(resp.List))
	for _, raw := range resp.List {
		inst, err := NewInstance(raw, "")
		if err != nil {
			m.logger.Warn("Skipping unparsable list entry", "error", err)
			continue
		}
		if inst.Name() == "" {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// ListDetailed lists all instances and merges each entry with its info
// output. An instance whose info cannot be fetched keeps its list entry.
func (m *Manager) ListDetailed(ctx context.Context) ([]Instance, error) {
	instances, err := m.List(ctx)
	if err != nil {
		return instances, err
	}

	for i, inst := range instances {
		detail, err := m.Info(ctx, inst.Name())
		if err != nil {
			m.logger.Warn("Failed to get info for instance", "name", inst.Name(), "error", err)
			continue
		}
		merged, err := merge(inst, detail)
		if err != nil {
			m.logger.Warn("Failed to merge info for instance", "name", inst.Name(), "error", err)
			continue
		}
		instances[i] = merged
	}
	return instances, nil
}

// Info returns the info entry for a single instance.
func (m *Manager) Info(ctx context.Context, name string) (Instance, error) {
	out := m.runner.Execute(ctx, command.Command{Operation: command.OpInfo, Name: name})
	if err := outcomeError(out); err != nil {
		if out.Kind == executor.KindNonZeroExit && strings.Contains(strings.ToLower(out.Stderr), "does not exist") {
			return Instance{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Instance{}, fmt.Errorf("failed to get info for %s: %w", name, err)
	}

	var resp infoResponse
	if err := json.Unmarshal([]byte(out.Stdout), &resp); err != nil {
		return Instance{}, fmt.Errorf("failed to parse info output: %w", err)
	}
	raw, ok := resp.Info[name]
	if !ok {
		return Instance{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return NewInstance(raw, name)
}

// Query runs list or info and returns the outcome with multipass's JSON
// output untouched, for callers that relay it verbatim.
func (m *Manager) Query(ctx context.Context, cmd command.Command) executor.Outcome {
	if cmd.Operation != command.OpList && cmd.Operation != command.OpInfo {
		return executor.Outcome{
			Kind:     executor.KindInternalError,
			ExitCode: executor.ExitInternal,
			Stderr:   fmt.Sprintf("%s is not a query operation", cmd.Operation),
			Args:     []string{command.Binary, string(cmd.Operation)},
		}
	}
	return m.runner.Execute(ctx, cmd)
}

// Version returns the output of multipass version.
func (m *Manager) Version(ctx context.Context) (string, error) {
	out := m.runner.Run(ctx, m.runner.Timeout(command.OpInfo), "version")
	if err := outcomeError(out); err != nil {
		return "", fmt.Errorf("failed to get multipass version: %w", err)
	}
	return out.Stdout, nil
}

// outcomeError converts an unsuccessful outcome to an error.
func outcomeError(out executor.Outcome) error {
	switch out.Kind {
	case executor.KindSuccess:
		return nil
	case executor.KindToolNotFound:
		return ErrToolNotFound
	default:
		return &CommandError{Outcome: out}
	}
}

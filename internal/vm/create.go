package vm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
	"github.com/jbweber/vmchat/internal/status"
)

// DefaultSettleDelay is the pause between a successful launch and the info
// fetch that confirms it.
const DefaultSettleDelay = 3 * time.Second

var (
	// ErrNotFound is returned when multipass has no instance by that name.
	ErrNotFound = errors.New("instance not found")

	// ErrToolNotFound is returned when the multipass binary is missing.
	ErrToolNotFound = errors.New("multipass not installed")
)

// CommandError reports a control binary run that did not succeed.
type CommandError struct {
	Outcome executor.Outcome
}

func (e *CommandError) Error() string {
	msg := e.Outcome.Message()
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("%s failed (%s, exit %d): %s",
		strings.Join(e.Outcome.Args, " "), e.Outcome.Kind, e.Outcome.ExitCode, msg)
}

// Options configures a Manager.
type Options struct {
	// SettleDelay is waited after launch before fetching info.
	// Zero means DefaultSettleDelay; negative means no wait.
	SettleDelay time.Duration

	// CleanupOnFailure deletes and purges an instance whose launch failed.
	CleanupOnFailure bool

	Logger *slog.Logger
}

// Manager runs instance operations through a Runner.
type Manager struct {
	runner  Runner
	tracker Lifecycle
	opts    Options
	logger  *slog.Logger
}

// NewManager creates a Manager.
func NewManager(runner Runner, tracker Lifecycle, opts Options) *Manager {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{runner: runner, tracker: tracker, opts: opts, logger: logger}
}

// Provision launches the instance described by cmd and records the result.
//
// The workflow is:
//  1. Run launch
//  2. Wait SettleDelay
//  3. Fetch info for the new instance
//  4. Record Completed with the info entry as detail
//
// The record for cmd.Name must already be Creating. A failed launch is
// recorded as Error; a failed info fetch still records Completed, with a
// message saying the details are unavailable.
func (m *Manager) Provision(ctx context.Context, cmd command.Command) status.Record {
	name := cmd.Name
	log := m.logger.With("name", name)

	log.Info("Launching VM", "parameters", cmd.Parameters)
	out := m.runner.Execute(ctx, cmd)
	if !out.OK() {
		msg := out.Stderr
		if msg == "" {
			msg = "unknown error"
		}
		log.Error("VM creation failed", "kind", out.Kind, "exit_code", out.ExitCode, "stderr", out.Stderr)
		rec := m.finish(name, status.StateError, fmt.Sprintf("failed to create VM: %s", msg), nil)
		if m.opts.CleanupOnFailure && out.Kind != executor.KindToolNotFound {
			m.cleanup(ctx, name)
		}
		return rec
	}

	if m.opts.SettleDelay > 0 {
		log.Info("Waiting for VM to settle", "delay", m.opts.SettleDelay)
		if err := sleep(ctx, m.opts.SettleDelay); err != nil {
			return m.finish(name, status.StateCompleted, degraded(name, err), nil)
		}
	}

	log.Info("Fetching VM info")
	inst, err := m.Info(ctx, name)
	if err != nil {
		log.Warn("Failed to fetch VM info", "error", err)
		return m.finish(name, status.StateCompleted, degraded(name, err), nil)
	}

	log.Info("VM created successfully")
	return m.finish(name, status.StateCompleted, fmt.Sprintf("VM %q created successfully", name), inst.Raw())
}

func degraded(name string, err error) string {
	return fmt.Sprintf("VM %q created; details unavailable: %v", name, err)
}

// finish records the outcome. If the record was moved on by someone else,
// the current record is returned instead.
func (m *Manager) finish(name string, state status.State, message string, detail json.RawMessage) status.Record {
	rec, err := m.tracker.Transition(name, state, message, detail)
	if err != nil {
		m.logger.Warn("Failed to record creation result", "name", name, "state", state, "error", err)
		return m.tracker.Get(name)
	}
	return rec
}

// cleanup attempts to remove a partially created instance.
//
// This is best-effort: it logs errors but never returns one.
func (m *Manager) cleanup(ctx context.Context, name string) {
	m.logger.Info("Cleaning up after failed VM creation...", "name", name)

	out := m.runner.Run(ctx, m.runner.Timeout(command.OpDelete), string(command.OpDelete), "--purge", name)
	if !out.OK() {
		// Launch often fails before anything exists.
		m.logger.Warn("Cleanup did not remove the instance", "name", name, "kind", out.Kind, "stderr", out.Stderr)
		return
	}
	m.logger.Info("Cleanup complete", "name", name)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

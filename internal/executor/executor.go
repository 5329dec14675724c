// Package executor runs the multipass control binary.
//
// Commands are spawned directly from an argv (never through a shell) with a
// per-class timeout. A weighted semaphore bounds how many processes run at
// once. Every run produces an Outcome; failures are reported through its
// Kind rather than as Go errors.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jbweber/vmchat/internal/command"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultWorkers        = 3
	DefaultInfoTimeout    = 30 * time.Second
	DefaultControlTimeout = 120 * time.Second
	DefaultCreateTimeout  = 600 * time.Second

	waitDelay = 5 * time.Second
)

// UserDataFunc writes cloud-init user-data for an instance and returns the
// file path. An empty path means no user-data is attached.
type UserDataFunc func(name string) (string, error)

// Options configures an Executor.
type Options struct {
	// Binary is a path or a name looked up in PATH. Default "multipass".
	Binary string

	Workers        int
	InfoTimeout    time.Duration
	ControlTimeout time.Duration
	CreateTimeout  time.Duration

	// UserData, when set, is called for every launch.
	UserData UserDataFunc

	Logger *slog.Logger
}

// Executor spawns the control binary.
type Executor struct {
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// New creates an Executor, filling defaults for zero fields.
func New(opts Options) *Executor {
	if opts.Binary == "" {
		opts.Binary = command.Binary
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.InfoTimeout <= 0 {
		opts.InfoTimeout = DefaultInfoTimeout
	}
	if opts.ControlTimeout <= 0 {
		opts.ControlTimeout = DefaultControlTimeout
	}
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = DefaultCreateTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.Workers)),
		logger: logger,
	}
}

// ResolveBinary returns the path of the control binary: the configured path
// if it exists on disk, otherwise the PATH lookup of the configured name.
func (e *Executor) ResolveBinary() (string, error) {
	bin := e.opts.Binary
	if info, err := os.Stat(bin); err == nil && !info.IsDir() && strings.ContainsRune(bin, os.PathSeparator) {
		return bin, nil
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("failed to find %s: %w", bin, err)
	}
	return path, nil
}

// Timeout returns the timeout for the operation's class.
func (e *Executor) Timeout(op command.Operation) time.Duration {
	switch op {
	case command.OpList, command.OpInfo:
		return e.opts.InfoTimeout
	case command.OpLaunch:
		return e.opts.CreateTimeout
	default:
		return e.opts.ControlTimeout
	}
}

// Args builds the argv (without the binary) for a classified command.
func (e *Executor) Args(cmd command.Command) ([]string, error) {
	switch cmd.Operation {
	case command.OpLaunch:
		args := []string{string(command.OpLaunch)}
		if image := cmd.Param(command.ParamImage); image != "" {
			args = append(args, image)
		}
		args = append(args, "--name", cmd.Name)
		for _, key := range []string{command.ParamMemory, command.ParamDisk, command.ParamCPUs} {
			if v := cmd.Param(key); v != "" {
				args = append(args, "--"+key, v)
			}
		}
		if e.opts.UserData != nil {
			path, err := e.opts.UserData(cmd.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to prepare cloud-init user-data: %w", err)
			}
			if path != "" {
				args = append(args, "--cloud-init", path)
			}
		}
		return args, nil
	case command.OpDelete:
		if cmd.Purge {
			return []string{string(command.OpDelete), "--purge", cmd.Name}, nil
		}
		return []string{string(command.OpDelete), cmd.Name}, nil
	case command.OpStart, command.OpStop, command.OpRecover:
		return []string{string(cmd.Operation), cmd.Name}, nil
	case command.OpPurge:
		return []string{string(command.OpPurge)}, nil
	case command.OpList:
		return []string{string(command.OpList), "--format", "json"}, nil
	case command.OpInfo:
		return []string{string(command.OpInfo), cmd.Name, "--format", "json"}, nil
	default:
		return nil, fmt.Errorf("unsupported operation %q", cmd.Operation)
	}
}

// Execute runs a classified command with the timeout of its class.
func (e *Executor) Execute(ctx context.Context, cmd command.Command) Outcome {
	args, err := e.Args(cmd)
	if err != nil {
		return Outcome{
			Kind:     KindInternalError,
			ExitCode: ExitInternal,
			Stderr:   err.Error(),
			Args:     append([]string{command.Binary}, string(cmd.Operation)),
		}
	}
	return e.Run(ctx, e.Timeout(cmd.Operation), args...)
}

// Run runs the control binary with args and the given timeout.
func (e *Executor) Run(ctx context.Context, timeout time.Duration, args ...string) Outcome {
	start := time.Now()
	out := Outcome{Args: append([]string{command.Binary}, args...)}

	path, err := e.ResolveBinary()
	if err != nil {
		e.logger.Warn("control binary not found", "binary", e.opts.Binary, "error", err)
		out.Kind, out.ExitCode = KindToolNotFound, ExitToolNotFound
		return out
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		out.Kind, out.ExitCode = KindInternalError, ExitInternal
		out.Stderr = fmt.Sprintf("failed to acquire executor slot: %v", err)
		out.Duration = time.Since(start)
		return out
	}
	defer e.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, path, args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = waitDelay
	killProcessGroup(c)

	e.logger.Debug("running command", "args", out.Args, "timeout", timeout)
	err = c.Run()
	out.Duration = time.Since(start)
	out.Stdout = strings.TrimSpace(stdout.String())
	out.Stderr = strings.TrimSpace(stderr.String())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out.Kind, out.ExitCode = KindSuccess, 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		out.Kind, out.ExitCode = KindTimeout, ExitTimeout
		out.Stderr = fmt.Sprintf("command timed out after %s", timeout)
	case runCtx.Err() != nil:
		out.Kind, out.ExitCode = KindInternalError, ExitInternal
		out.Stderr = fmt.Sprintf("command cancelled: %v", runCtx.Err())
	case errors.As(err, &exitErr):
		out.Kind, out.ExitCode = KindNonZeroExit, exitErr.ExitCode()
	default:
		out.Kind, out.ExitCode = KindInternalError, ExitInternal
		out.Stderr = fmt.Sprintf("unexpected error: %v", err)
	}

	e.logger.Debug("command finished", "args", out.Args, "kind", out.Kind, "exit_code", out.ExitCode, "duration", out.Duration)
	return out
}

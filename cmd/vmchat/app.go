package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/cloudinit"
	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/config"
	"github.com/jbweber/vmchat/internal/executor"
	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/llm"
	"github.com/jbweber/vmchat/internal/output"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

// app holds the services a command needs, built from the configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	exec     *executor.Executor
	tracker  *status.Tracker
	manager  *vm.Manager
	pipeline *pipeline.Pipeline
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	execOpts := executor.Options{
		Binary:         cfg.Multipass.Binary,
		Workers:        cfg.Executor.Workers,
		InfoTimeout:    cfg.Executor.InfoTimeout.Std(),
		ControlTimeout: cfg.Executor.ControlTimeout.Std(),
		CreateTimeout:  cfg.Executor.CreateTimeout.Std(),
		Logger:         logger,
	}
	if cfg.CloudInit != nil {
		execOpts.UserData = cloudinit.Writer(cfg.CloudInit)
	}
	exec := executor.New(execOpts)

	settle := cfg.Executor.SettleDelay.Std()
	if settle == 0 {
		settle = -1
	}

	tracker := status.NewTracker()
	manager := vm.NewManager(exec, tracker, vm.Options{
		SettleDelay:      settle,
		CleanupOnFailure: cfg.Executor.CleanupOnFailure,
		Logger:           logger,
	})
	p := pipeline.New(manager, tracker, pipeline.Options{
		Normalizer: command.Normalizer{DefaultRelease: cfg.Multipass.DefaultRelease},
		Logger:     logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		exec:     exec,
		tracker:  tracker,
		manager:  manager,
		pipeline: p,
	}, nil
}

// provider returns the configured chat model client.
func (a *app) provider() (llm.Provider, error) {
	p, err := llm.New(a.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return p, nil
}

func (a *app) healthChecker(model health.ModelChecker) *health.Checker {
	return health.New(health.Options{
		Binary:        a.exec,
		Versioner:     a.manager,
		Model:         model,
		LibvirtSocket: a.cfg.Multipass.LibvirtSocket,
		Logger:        a.logger,
	})
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", cfg.Format)
	}
}

func newFormatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

// printWith formats v with the selected formatter and writes it to the
// command's output.
func printWith(cmd *cobra.Command, format func(output.Formatter) (string, error)) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	result, err := format(formatter)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), result)
	return err
}

// Package pipeline turns free-form text into multipass operations.
//
// Submit runs every command found in the text through the same stages:
//
//	Extract -> Split -> Normalize -> Classify -> dispatch
//
// Rejections and executor failures are reported as values in the
// Submission. Synchronous operations (start, stop, delete, purge, recover,
// list, info) run before Submit returns; launch is started as a background
// Task whose progress is visible through the lifecycle tracker.
package pipeline

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
	"github.com/jbweber/vmchat/internal/naming"
	"github.com/jbweber/vmchat/internal/status"
)

// StatusStarted marks a result whose work continues in a background task.
const StatusStarted = "started"

// Operator runs classified commands.
//
// In production, this is satisfied by *vm.Manager.
type Operator interface {
	// Provision launches an instance and records the result
	Provision(ctx context.Context, cmd command.Command) status.Record

	// Control runs start, stop, recover, delete and purge
	Control(ctx context.Context, cmd command.Command) executor.Outcome

	// Query runs list and info
	Query(ctx context.Context, cmd command.Command) executor.Outcome
}

// Lifecycle is the per-instance creation state store.
//
// In production, this is satisfied by *status.Tracker.
type Lifecycle interface {
	Begin(name, message string) (status.Record, error)
	Transition(name string, state status.State, message string, detail json.RawMessage) (status.Record, error)
	Get(name string) status.Record
	List() []status.Record
}

// Result describes what happened to one extracted command.
type Result struct {
	Input     string             `json:"input" yaml:"input"`
	Canonical string             `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Operation command.Operation  `json:"operation,omitempty" yaml:"operation,omitempty"`
	Name      string             `json:"resourceName,omitempty" yaml:"resourceName,omitempty"`
	Rejection *command.Rejection `json:"rejection,omitempty" yaml:"rejection,omitempty"`
	Outcome   *executor.Outcome  `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Status    string             `json:"status,omitempty" yaml:"status,omitempty"`
	TaskID    string             `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Submission is the result of Submit.
type Submission struct {
	Accepted              bool     `json:"accepted" yaml:"accepted"`
	ExtractedCommandCount int      `json:"extractedCommandCount" yaml:"extractedCommandCount"`
	Results               []Result `json:"results" yaml:"results"`
}

// Options configures a Pipeline.
type Options struct {
	Normalizer command.Normalizer
	Logger     *slog.Logger
}

// Pipeline dispatches commands and tracks background creations.
type Pipeline struct {
	ops        Operator
	tracker    Lifecycle
	normalizer command.Normalizer
	logger     *slog.Logger

	wg    sync.WaitGroup
	mu    sync.RWMutex
	tasks map[string]*Task
}

// New creates a Pipeline.
func New(ops Operator, tracker Lifecycle, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		ops:        ops,
		tracker:    tracker,
		normalizer: opts.Normalizer,
		logger:     logger,
		tasks:      make(map[string]*Task),
	}
}

// Submit extracts every command from text and dispatches each one.
//
// Text without a command is not an error: the Submission is simply not
// Accepted. Commands are dispatched in the order they appear.
func (p *Pipeline) Submit(ctx context.Context, text string) Submission {
	var parts []string
	for _, c := range command.Extract(text) {
		parts = append(parts, command.Split(c.Text)...)
	}

	sub := Submission{
		Accepted:              len(parts) > 0,
		ExtractedCommandCount: len(parts),
		Results:               make([]Result, 0, len(parts)),
	}
	if !sub.Accepted {
		p.logger.Debug("No command found in submission")
		return sub
	}

	for _, part := range parts {
		cmd, rej := p.Prepare(part)
		if rej != nil {
			p.logger.Info("Rejected command", "input", part, "reason", rej.Reason, "detail", rej.Detail)
			sub.Results = append(sub.Results, Result{Input: part, Canonical: rej.Input, Rejection: rej})
			continue
		}

		res, err := p.Dispatch(ctx, cmd)
		res.Input = part
		if err != nil {
			res.Error = err.Error()
		}
		sub.Results = append(sub.Results, res)
	}
	return sub
}

// Prepare normalizes and classifies a single command.
func (p *Pipeline) Prepare(text string) (command.Command, *command.Rejection) {
	return p.normalizer.Parse(text)
}

// Dispatch runs a classified command. Launch starts a background task and
// returns at once; the only error is a launch that cannot be started
// because the instance is already being created.
func (p *Pipeline) Dispatch(ctx context.Context, cmd command.Command) (Result, error) {
	res := Result{
		Input:     cmd.Canonical,
		Canonical: cmd.Canonical,
		Operation: cmd.Operation,
		Name:      cmd.Name,
	}

	switch cmd.Operation {
	case command.OpLaunch:
		task, err := p.launch(ctx, cmd)
		if err != nil {
			return res, err
		}
		res.Status = StatusStarted
		res.TaskID = task.ID()
	case command.OpList, command.OpInfo:
		out := p.ops.Query(ctx, cmd)
		res.Outcome = &out
	default:
		out := p.ops.Control(ctx, cmd)
		res.Outcome = &out
	}
	return res, nil
}

// launch marks the instance Creating and provisions it in the background.
// The task is detached from ctx so that a finished request does not abort
// the creation; the executor's create timeout still bounds it.
func (p *Pipeline) launch(ctx context.Context, cmd command.Command) (*Task, error) {
	if _, err := p.tracker.Begin(cmd.Name, fmt.Sprintf("VM %q is being created...", cmd.Name)); err != nil {
		return nil, fmt.Errorf("failed to start creation of %s: %w", cmd.Name, err)
	}

	task := newTask(naming.TaskName(string(cmd.Operation), cmd.Name), cmd.Name)
	p.mu.Lock()
	p.tasks[task.ID()] = task
	p.mu.Unlock()

	p.logger.Info("Started creation task", "task", task.ID(), "name", cmd.Name)

	p.wg.Add(1)
	go p.run(context.WithoutCancel(ctx), task, cmd)
	return task, nil
}

func (p *Pipeline) run(ctx context.Context, task *Task, cmd command.Command) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Creation task panicked", "task", task.ID(), "name", cmd.Name, "panic", r)
			rec, err := p.tracker.Transition(cmd.Name, status.StateError, fmt.Sprintf("failed to create VM: internal error: %v", r), nil)
			if err != nil {
				rec = p.tracker.Get(cmd.Name)
			}
			task.complete(rec)
		}
	}()

	rec := p.ops.Provision(ctx, cmd)
	p.logger.Info("Creation task finished", "task", task.ID(), "name", cmd.Name, "state", rec.State)
	task.complete(rec)
}

// Status returns the lifecycle record for name.
func (p *Pipeline) Status(name string) status.Record {
	return p.tracker.Get(name)
}

// Records returns every lifecycle record.
func (p *Pipeline) Records() []status.Record {
	return p.tracker.List()
}

// Task returns the task with the given ID.
func (p *Pipeline) Task(id string) (*Task, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tasks[id]
	return t, ok
}

// TaskStatus returns a snapshot of the task with the given ID. While the
// task runs, the record is the instance's current lifecycle record.
func (p *Pipeline) TaskStatus(id string) (TaskStatus, bool) {
	t, ok := p.Task(id)
	if !ok {
		return TaskStatus{}, false
	}
	rec, done := t.Result()
	if !done {
		rec = p.tracker.Get(t.Resource())
	}
	return TaskStatus{
		ID:        t.ID(),
		Label:     t.Label(),
		Name:      t.Resource(),
		Done:      done,
		CreatedAt: t.CreatedAt(),
		Record:    rec,
	}, true
}

// Tasks returns snapshots of all tasks, oldest first.
func (p *Pipeline) Tasks() []TaskStatus {
	p.mu.RLock()
	ids := make([]string, 0, len(p.tasks))
	for id := range p.tasks {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	out := make([]TaskStatus, 0, len(ids))
	for _, id := range ids {
		if ts, ok := p.TaskStatus(id); ok {
			out = append(out, ts)
		}
	}
	slices.SortFunc(out, func(a, b TaskStatus) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Wait blocks until every started task has finished or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for creation tasks: %w", ctx.Err())
	}
}

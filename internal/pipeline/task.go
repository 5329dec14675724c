package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jbweber/vmchat/internal/status"
)

// Task is a background creation. It completes exactly once, with the final
// lifecycle record of its instance.
type Task struct {
	id        string
	label     string
	resource  string
	createdAt time.Time

	once sync.Once
	done chan struct{}

	mu     sync.RWMutex
	result status.Record
}

func newTask(label, resource string) *Task {
	return &Task{
		id:        uuid.NewString(),
		label:     label,
		resource:  resource,
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// ID returns the task's unique ID.
func (t *Task) ID() string { return t.id }

// Label returns the task label, e.g. "launch/web1".
func (t *Task) Label() string { return t.label }

// Resource returns the instance name the task works on.
func (t *Task) Resource() string { return t.resource }

// CreatedAt returns when the task was submitted.
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// Done is closed when the task has completed.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the final record and true once the task has completed.
func (t *Task) Result() (status.Record, bool) {
	select {
	case <-t.done:
	default:
		return status.Record{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, true
}

// Wait blocks until the task completes or ctx is done.
func (t *Task) Wait(ctx context.Context) (status.Record, error) {
	select {
	case <-t.done:
		rec, _ := t.Result()
		return rec, nil
	case <-ctx.Done():
		return status.Record{}, ctx.Err()
	}
}

// complete stores the result and releases waiters. Later calls are no-ops.
func (t *Task) complete(rec status.Record) {
	t.once.Do(func() {
		t.mu.Lock()
		t.result = rec
		t.mu.Unlock()
		close(t.done)
	})
}

// TaskStatus is a point-in-time view of a task.
type TaskStatus struct {
	ID        string        `json:"id" yaml:"id"`
	Label     string        `json:"label" yaml:"label"`
	Name      string        `json:"name" yaml:"name"`
	Done      bool          `json:"done" yaml:"done"`
	CreatedAt time.Time     `json:"createdAt" yaml:"createdAt"`
	Record    status.Record `json:"record" yaml:"record"`
}

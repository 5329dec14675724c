// Package status tracks the lifecycle of asynchronous instance creations.
//
// A Tracker holds one Record per instance name. Records move through
// Unknown → Creating → {Completed, Error}; a finished record only changes
// again when a new creation begins. Records are kept for the life of the
// process.
package status

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"
)

// NotFoundMessage is reported for names the tracker has never seen.
const NotFoundMessage = "VM not found"

// Record is the lifecycle state of one instance.
type Record struct {
	Name      string          `json:"name" yaml:"name"`
	State     State           `json:"status" yaml:"status"`
	Message   string          `json:"message" yaml:"message"`
	Detail    json.RawMessage `json:"detail,omitempty" yaml:"-"`
	UpdatedAt time.Time       `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// Tracker is a concurrency-safe store of Records keyed by instance name.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Begin marks name as Creating. It fails with ErrAlreadyCreating if a
// creation for name is already running.
func (t *Tracker) Begin(name, message string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.lookup(name)
	if err := checkBegin(current.State); err != nil {
		return current, err
	}

	r := Record{Name: name, State: StateCreating, Message: message, UpdatedAt: t.now()}
	t.records[name] = r
	return r, nil
}

// Transition moves a Creating record to Completed or Error. The current
// record is returned unchanged with ErrInvalidTransition otherwise.
func (t *Tracker) Transition(name string, state State, message string, detail json.RawMessage) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.lookup(name)
	if err := checkTransition(current.State, state); err != nil {
		return current, err
	}

	r := Record{
		Name:      name,
		State:     state,
		Message:   message,
		Detail:    slices.Clone(detail),
		UpdatedAt: t.now(),
	}
	t.records[name] = r
	return r, nil
}

// Get returns the record for name, or an Unknown record if there is none.
func (t *Tracker) Get(name string) Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lookup(name)
}

// List returns all records sorted by name.
func (t *Tracker) List() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// lookup must be called with mu held.
func (t *Tracker) lookup(name string) Record {
	if r, ok := t.records[name]; ok {
		return r
	}
	return Record{Name: name, State: StateUnknown, Message: NotFoundMessage}
}

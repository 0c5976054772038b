package labsched

import (
	"encoding/json"
	"math"
)

// Unsolved is the sentinel value for Task.Start / Task.End before a
// schedule has assigned them a time. (The Python original used NaN; Go has
// no NaN for integers, so we use a value no real schedule will ever
// produce.)
const Unsolved = math.MinInt32

// TaskLike is implemented by *Task. Protocol worklists hold TaskLike
// elements; NewTransition also returns a TaskLike (a *Task with Source and
// Destination populated) so callers can build worklists out of a mix of
// plain tasks and transitions without a separate concrete type — see
// transition.go and spec.md §9's "tagged variant" design note.
type TaskLike interface {
	task() *Task
}

// DetailsFunc produces additional, scheduling-irrelevant metadata describing
// a Task occurrence (e.g. a spin speed or anneal temperature). It is the Go
// substitute for subclassing Task and overriding generate_details in the
// Python original: set per Task at construction via WithDetailsFunc.
type DetailsFunc func() map[string]any

// Task is an atomic unit of work with integer duration, a required worker
// set, optional precedents, and behavioral flags.
type Task struct {
	Name    string
	ID      string
	Workers []*Worker // non-empty; Workers[0] is the primary worker
	Duration int
	Precedent []*Task
	Immediate bool
	Breakpoint bool
	Capacity   int // >= 1; if > 1 must be <= every worker's capacity
	Details    map[string]any
	DetailsFn  DetailsFunc
	MinStart   int

	// Source and Destination are set only for Transitions (spec.md §3): a
	// Transition is "a Task with additional source and destination
	// Workers". Nil for ordinary Tasks.
	Source      *Worker
	Destination *Worker

	// Solved fields, written by Scheduler.Solve.
	Start          int
	End            int
	SolutionCount  int

	// UtilizedCapacity is runtime-only bookkeeping used while System
	// assembles protocols (shared high-capacity task instances).
	UtilizedCapacity int
}

func (t *Task) task() *Task { return t }

// TaskOption configures optional Task fields.
type TaskOption func(*Task)

// WithPrecedent sets the tasks that must complete before this one starts.
func WithPrecedent(p ...*Task) TaskOption {
	return func(t *Task) { t.Precedent = append(t.Precedent, p...) }
}

// WithImmediate marks the task as starting exactly when its (last)
// precedent ends.
func WithImmediate() TaskOption {
	return func(t *Task) { t.Immediate = true }
}

// WithBreakpoint flags the task as a phase boundary for staged solving.
func WithBreakpoint() TaskOption {
	return func(t *Task) { t.Breakpoint = true }
}

// WithCapacity sets how many shared occurrences a single task instance can
// serve (e.g. an oven baking 25 samples at once).
func WithCapacity(c int) TaskOption {
	return func(t *Task) { t.Capacity = c }
}

// WithDetails attaches opaque downstream metadata, unused by scheduling.
func WithDetails(d map[string]any) TaskOption {
	return func(t *Task) { t.Details = d }
}

// WithDetailsFunc attaches a callback invoked by GenerateDetails/ToDict,
// the Go analogue of overriding generate_details in a Task subclass.
func WithDetailsFunc(fn DetailsFunc) TaskOption {
	return func(t *Task) { t.DetailsFn = fn }
}

// WithMinStart sets a lower-bound hint for the solver (overwritten by
// System.GenerateProtocol's cumulative min_start assignment, if used via a
// System rather than constructed standalone).
func WithMinStart(t0 int) TaskOption {
	return func(t *Task) { t.MinStart = t0 }
}

// NewTask constructs a Task. Fails if capacity exceeds any required
// worker's capacity. It does not warn about capacity > 1 combined with
// immediate (see CapacityRisksInfeasibility); System.GenerateProtocol logs
// that warning through the System's logger when it instantiates such a task.
func NewTask(name string, workers []*Worker, duration int, opts ...TaskOption) (*Task, error) {
	if len(workers) == 0 {
		return nil, newValidationError("Task", "%q: must have at least one worker", name)
	}
	t := &Task{
		Name:     name,
		Workers:  workers,
		Duration: duration,
		Capacity: 1,
		Start:    Unsolved,
		End:      Unsolved,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ID = generateID(t.Name)

	if t.Capacity > 1 {
		for _, w := range t.Workers {
			if t.Capacity > w.Capacity {
				return nil, newValidationError("Task",
					"%q has capacity %d, greater than that of required worker %q (capacity %d)",
					t.Name, t.Capacity, w.Name, w.Capacity)
			}
		}
	}
	return t, nil
}

// IsTransition reports whether this task instance is a Transition (has a
// source and destination worker).
func (t *Task) IsTransition() bool {
	return t.Source != nil && t.Destination != nil
}

// CapacityRisksInfeasibility reports the author warning from spec.md §3:
// capacity > 1 combined with Immediate is typically infeasible, since
// preceding Transition tasks cannot all complete simultaneously.
func (t *Task) CapacityRisksInfeasibility() bool {
	return t.Capacity > 1 && t.Immediate
}

// GenerateDetails builds the downstream metadata dictionary for this task,
// via DetailsFn if set, falling back to Details (or an empty map).
func (t *Task) GenerateDetails() map[string]any {
	if t.DetailsFn != nil {
		return t.DetailsFn()
	}
	if t.Details != nil {
		return t.Details
	}
	return map[string]any{}
}

// Clone produces a fresh instance with a new id, reset UtilizedCapacity, and
// unsolved Start/End/SolutionCount. Precedent is carried over by reference
// (not recursively cloned) — see DESIGN.md and SPEC_FULL.md §9 for why this
// matches the original's actual (not its commented-out intended) behavior.
func (t *Task) Clone() *Task {
	clone := *t
	clone.Workers = append([]*Worker(nil), t.Workers...)
	clone.Precedent = append([]*Task(nil), t.Precedent...)
	clone.ID = generateID(t.Name)
	clone.UtilizedCapacity = 0
	clone.Start = Unsolved
	clone.End = Unsolved
	clone.SolutionCount = 0
	return &clone
}

// Equal compares tasks by id, per the spec's equality invariant.
func (t *Task) Equal(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ID == other.ID
}

// HasPrecedent reports whether p is already present among t's precedents.
func (t *Task) HasPrecedent(p *Task) bool {
	for _, existing := range t.Precedent {
		if existing.Equal(p) {
			return true
		}
	}
	return false
}

func (t *Task) String() string {
	return "<Task: " + t.Name + ">"
}

// taskDict is the JSON shape documented in spec.md §6.
type taskDict struct {
	Name      string         `json:"name"`
	Start     int            `json:"start"`
	ID        string         `json:"id"`
	Details   map[string]any `json:"details"`
	Precedent []string       `json:"precedent"`
}

// ToDict renders the task in the external serialization shape documented in
// spec.md §6. Serialization itself is an out-of-scope subsystem (no dumper,
// no file I/O); this is just the shape.
func (t *Task) ToDict() map[string]any {
	precedentIDs := make([]string, len(t.Precedent))
	for i, p := range t.Precedent {
		precedentIDs[i] = p.ID
	}
	return map[string]any{
		"name":      t.Name,
		"start":     t.Start,
		"id":        t.ID,
		"details":   t.GenerateDetails(),
		"precedent": precedentIDs,
	}
}

// ToJSON marshals ToDict's shape.
func (t *Task) ToJSON() ([]byte, error) {
	precedentIDs := make([]string, len(t.Precedent))
	for i, p := range t.Precedent {
		precedentIDs[i] = p.ID
	}
	return json.Marshal(taskDict{
		Name:      t.Name,
		Start:     t.Start,
		ID:        t.ID,
		Details:   t.GenerateDetails(),
		Precedent: precedentIDs,
	})
}

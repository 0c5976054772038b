package labsched

// Worker is a named resource with integer capacity and an optional initial
// fill level. Names are unique across a System; capacity is immutable for
// the lifetime of a solve. Equality is by name.
type Worker struct {
	Name        string
	Capacity    int
	InitialFill int

	// Reservoir opts this Worker into the dwell-capacity check
	// (SPEC_FULL.md §4.4): at most Capacity-InitialFill (floored at 1)
	// samples may reside here between their arrival and departure
	// Transitions at once. The cumulative/no-overlap task-level constraint
	// still applies to a reservoir Worker, as to every Worker. Intended for
	// storage-like workers where only Transitions move samples in and out.
	Reservoir bool
}

// WorkerOption configures optional Worker fields.
type WorkerOption func(*Worker)

// WithInitialFill sets the worker's starting occupancy.
func WithInitialFill(n int) WorkerOption {
	return func(w *Worker) { w.InitialFill = n }
}

// WithReservoir opts the worker into reservoir-style capacity accounting.
func WithReservoir() WorkerOption {
	return func(w *Worker) { w.Reservoir = true }
}

// NewWorker constructs a Worker. Fails if capacity < 1 or if initial fill is
// negative or exceeds capacity.
func NewWorker(name string, capacity int, opts ...WorkerOption) (*Worker, error) {
	if capacity < 1 {
		return nil, newValidationError("Worker", "%q: capacity must be >= 1, got %d", name, capacity)
	}
	w := &Worker{Name: name, Capacity: capacity}
	for _, opt := range opts {
		opt(w)
	}
	if w.InitialFill < 0 || w.InitialFill > w.Capacity {
		return nil, newValidationError("Worker", "%q: initial_fill %d must be within [0, capacity=%d]", name, w.InitialFill, w.Capacity)
	}
	return w, nil
}

// UnitCapacity reports whether this worker participates in the sample-span
// ordering rule (SPEC_FULL.md §4.2.5): capacity exactly 1.
func (w *Worker) UnitCapacity() bool {
	return w.Capacity == 1
}

// Equal compares workers by name, per the spec's equality invariant.
func (w *Worker) Equal(other *Worker) bool {
	if w == nil || other == nil {
		return w == other
	}
	return w.Name == other.Name
}

func (w *Worker) String() string {
	return "<Worker: " + w.Name + ">"
}

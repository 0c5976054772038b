package labsched

// NewTransition constructs a Task specialized to a (source -> destination)
// Worker pair, representing the movement of a sample between workers. Its
// name is derived as "<source>_to_<destination>". See spec.md §3: a
// Transition is "a Task with additional source and destination Workers" —
// Go has no subclassing, so this is modeled as Task.Source/Destination
// rather than a distinct embedding type (spec.md §9's "tagged variant").
func NewTransition(duration int, source, destination *Worker, workers []*Worker, opts ...TaskOption) (*Task, error) {
	if source == nil || destination == nil {
		return nil, newValidationError("Transition", "source and destination workers are required")
	}
	name := source.Name + "_to_" + destination.Name
	t, err := NewTask(name, workers, duration, opts...)
	if err != nil {
		return nil, err
	}
	t.Source = source
	t.Destination = destination
	t.DetailsFn = func() map[string]any {
		return map[string]any{"source": source.Name, "destination": destination.Name}
	}
	return t, nil
}

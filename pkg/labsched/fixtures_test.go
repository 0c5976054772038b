package labsched

// fixture mirrors original_source/roboflo/tests/example_system.py: a
// five-worker lab with a spincoater/hotplate/storage/characterization line
// and a transfer arm, wired into a System via NewSystem.
type fixture struct {
	hotplate          *Worker
	spincoater        *Worker
	storage           *Worker
	characterization  *Worker
	arm               *Worker
	workers           []*Worker
}

func newFixtureWorkers(t testingT) *fixture {
	hotplate, err := NewWorker("hotplate", 25)
	mustNoError(t, err)
	spincoater, err := NewWorker("spincoater", 1)
	mustNoError(t, err)
	storage, err := NewWorker("storage", 45)
	mustNoError(t, err)
	characterization, err := NewWorker("characterization line", 1)
	mustNoError(t, err)
	arm, err := NewWorker("arm", 1)
	mustNoError(t, err)

	f := &fixture{
		hotplate:         hotplate,
		spincoater:       spincoater,
		storage:          storage,
		characterization: characterization,
		arm:              arm,
	}
	f.workers = []*Worker{hotplate, spincoater, storage, characterization, arm}
	return f
}

func (f *fixture) transitions(t testingT) []*Task {
	mk := func(duration int, source, destination *Worker) *Task {
		tr, err := NewTransition(duration, source, destination, []*Worker{f.arm})
		mustNoError(t, err)
		return tr
	}
	return []*Task{
		mk(28, f.storage, f.spincoater),
		mk(20, f.spincoater, f.hotplate),
		mk(15, f.hotplate, f.storage),
		mk(15, f.storage, f.characterization),
		mk(15, f.characterization, f.storage),
	}
}

func (f *fixture) system(t testingT) *System {
	sys, err := NewSystem(f.workers, f.transitions(t),
		WithStartingWorker(f.storage), WithEndingWorker(f.storage))
	mustNoError(t, err)
	return sys
}

// sampleTasks mirrors make_tasks in example_system.py: spincoat -> anneal
// (immediate) -> rest (immediate) -> characterize.
func (f *fixture) sampleTasks(t testingT) (spincoat, anneal, rest, characterize *Task) {
	var err error
	spincoat, err = NewTask("spincoat", []*Worker{f.spincoater}, 60,
		WithDetailsFunc(func() map[string]any { return map[string]any{"spin_speed": 1000} }))
	mustNoError(t, err)

	anneal, err = NewTask("anneal", []*Worker{f.hotplate}, 60*15, WithImmediate(),
		WithDetailsFunc(func() map[string]any { return map[string]any{"temperature": 100} }))
	mustNoError(t, err)

	rest, err = NewTask("rest", []*Worker{f.storage}, 180, WithImmediate())
	mustNoError(t, err)

	characterize, err = NewTask("characterize", []*Worker{f.characterization}, 300)
	mustNoError(t, err)

	return spincoat, anneal, rest, characterize
}

// testingT is the minimal subset of *testing.T the fixtures need, so they
// can be called from TestMain-less table setups without importing "testing"
// into a non-test compilation unit.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

func mustNoError(t testingT, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package labsched

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// System is the authoring layer: it holds workers, the transition
// multigraph, default start/end workers, and a registry of protocols. It
// expands user-supplied worklists into fully-transitioned worklists and
// feeds them to its Scheduler.
type System struct {
	Workers              []*Worker
	transitions          map[string]map[string]*Task // source name -> dest name -> template
	StartingWorker       *Worker
	EndingWorker         *Worker
	EnforceProtocolOrder bool

	protocolNames  map[string]bool
	protocolIndex  int
	Scheduler      *Scheduler
	logger         hclog.Logger

	// Ephemeral assembly state shared across GenerateProtocol calls.
	currentTaskInstances      map[string]*Task // template id -> live shared instance
	latestExistingStartTime   int
}

// SystemOption configures optional System fields.
type SystemOption func(*System)

// WithStartingWorker sets the system default starting location for
// protocols.
func WithStartingWorker(w *Worker) SystemOption {
	return func(s *System) { s.StartingWorker = w }
}

// WithEndingWorker sets the system default ending location for protocols.
func WithEndingWorker(w *Worker) SystemOption {
	return func(s *System) { s.EndingWorker = w }
}

// WithEnforceProtocolOrder enables strict start-time ordering between
// adjacently-registered protocols (SPEC_FULL.md / spec.md §4.2.6).
func WithEnforceProtocolOrder() SystemOption {
	return func(s *System) { s.EnforceProtocolOrder = true }
}

// WithSystemLogger installs a structured logger; defaults to a null logger.
func WithSystemLogger(l hclog.Logger) SystemOption {
	return func(s *System) { s.logger = l }
}

// NewSystem constructs a System. Fails on duplicate worker names, on
// starting/ending workers absent from workers, or on transitions
// referencing unknown workers.
func NewSystem(workers []*Worker, transitions []*Task, opts ...SystemOption) (*System, error) {
	var errs *multierror.Error

	seen := map[string]bool{}
	for _, w := range workers {
		if seen[w.Name] {
			errs = multierror.Append(errs, newValidationError("System", "duplicate worker name %q", w.Name))
		}
		seen[w.Name] = true
	}

	transitionIndex := make(map[string]map[string]*Task, len(workers))
	for _, w := range workers {
		transitionIndex[w.Name] = map[string]*Task{}
	}
	for _, t := range transitions {
		if !t.IsTransition() {
			errs = multierror.Append(errs, newValidationError("System", "%q passed as a transition has no source/destination worker", t.Name))
			continue
		}
		if _, ok := transitionIndex[t.Source.Name]; !ok {
			errs = multierror.Append(errs, newValidationError("System", "transition %q references unknown source worker %q", t.Name, t.Source.Name))
			continue
		}
		if _, ok := transitionIndex[t.Destination.Name]; !ok {
			errs = multierror.Append(errs, newValidationError("System", "transition %q references unknown destination worker %q", t.Name, t.Destination.Name))
			continue
		}
		transitionIndex[t.Source.Name][t.Destination.Name] = t
	}

	sys := &System{
		Workers:               workers,
		transitions:            transitionIndex,
		protocolNames:          map[string]bool{},
		currentTaskInstances:   map[string]*Task{},
		logger:                 hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(sys)
	}

	if sys.StartingWorker != nil && !workerIn(sys.StartingWorker, workers) {
		errs = multierror.Append(errs, newValidationError("System", "starting worker %q must be present in workers", sys.StartingWorker.Name))
	}
	if sys.EndingWorker != nil && !workerIn(sys.EndingWorker, workers) {
		errs = multierror.Append(errs, newValidationError("System", "ending worker %q must be present in workers", sys.EndingWorker.Name))
	}

	if errs.ErrorOrNil() != nil {
		return nil, errs
	}

	sys.Scheduler = NewScheduler(sys, WithSchedulerLogger(sys.logger))
	return sys, nil
}

func workerIn(w *Worker, workers []*Worker) bool {
	for _, candidate := range workers {
		if candidate.Equal(w) {
			return true
		}
	}
	return false
}

// GenerateOption configures a single GenerateProtocol call.
type GenerateOption func(*generateConfig)

type generateConfig struct {
	name           string
	minStart       int
	startingWorker *Worker
	endingWorker   *Worker
}

// WithProtocolName names the protocol explicitly (default: "sample<k>").
func WithProtocolName(name string) GenerateOption {
	return func(c *generateConfig) { c.name = name }
}

// WithProtocolMinStart sets the floor for the protocol's first task.
func WithProtocolMinStart(t0 int) GenerateOption {
	return func(c *generateConfig) { c.minStart = t0 }
}

// WithProtocolStartingWorker overrides the system's default starting
// worker for this protocol only.
func WithProtocolStartingWorker(w *Worker) GenerateOption {
	return func(c *generateConfig) { c.startingWorker = w }
}

// WithProtocolEndingWorker overrides the system's default ending worker
// for this protocol only.
func WithProtocolEndingWorker(w *Worker) GenerateOption {
	return func(c *generateConfig) { c.endingWorker = w }
}

// GenerateProtocol converts a user's abstract sequence into a concrete
// Protocol ready for scheduling: it acquires (possibly shared) task
// instances, chains precedence, and inserts Transitions between tasks that
// sit on different primary workers. See spec.md §4.1 for the full algorithm.
func (s *System) GenerateProtocol(worklist []TaskLike, opts ...GenerateOption) (*Protocol, error) {
	cfg := generateConfig{minStart: 0}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = fmt.Sprintf("sample%d", s.protocolIndex)
	}
	if s.protocolNames[cfg.name] {
		return nil, newValidationError("System", "protocol named %q already exists", cfg.name)
	}

	startingWorker := cfg.startingWorker
	if startingWorker == nil {
		startingWorker = s.StartingWorker
	}
	if startingWorker == nil {
		return nil, newValidationError("System", "no starting worker: set one on the System or pass WithProtocolStartingWorker")
	}
	endingWorker := cfg.endingWorker
	if endingWorker == nil {
		endingWorker = s.EndingWorker
	}

	if cfg.minStart > s.latestExistingStartTime {
		s.currentTaskInstances = map[string]*Task{}
	}

	// Step 3: acquire instances, sharing capacity where possible.
	instances := make([]*Task, len(worklist))
	for i, tl := range worklist {
		template := tl.task()
		instances[i] = s.acquireInstance(template)
	}

	// Step 4: chain precedence between consecutive instances.
	for i := 0; i < len(instances)-1; i++ {
		t0, t1 := instances[i], instances[i+1]
		if !t1.HasPrecedent(t0) {
			t1.Precedent = append(t1.Precedent, t0)
		}
	}

	// Step 5: walk instances, inserting transitions as the primary worker
	// changes.
	var protocolWorklist []*Task
	source := startingWorker
	var lastDestination *Worker
	for _, instance := range instances {
		destination := instance.Workers[0]
		if !source.Equal(destination) {
			transition, err := s.generateTransitionTask(instance, source, destination)
			if err != nil {
				return nil, err
			}
			protocolWorklist = append(protocolWorklist, transition)
			instance.Precedent = []*Task{transition}
		}
		protocolWorklist = append(protocolWorklist, instance)
		source = destination
		lastDestination = destination
	}

	// Step 6: optional closing transition back to the ending worker.
	if endingWorker != nil && lastDestination != nil && !lastDestination.Equal(endingWorker) {
		last := instances[len(instances)-1]
		transition, err := s.generateTransitionTask(last, lastDestination, endingWorker)
		if err != nil {
			return nil, err
		}
		transition.Precedent = []*Task{protocolWorklist[len(protocolWorklist)-1]}
		protocolWorklist = append(protocolWorklist, transition)
	}

	// Step 7: cumulative min_start assignment.
	minStart := cfg.minStart
	for _, task := range protocolWorklist {
		task.MinStart = minStart
		minStart += task.Duration
	}

	worklistTL := make([]TaskLike, len(protocolWorklist))
	for i, t := range protocolWorklist {
		worklistTL[i] = t
	}
	protocol, err := NewProtocol(cfg.name, worklistTL)
	if err != nil {
		return nil, err
	}

	s.protocolNames[cfg.name] = true
	s.protocolIndex++
	if cfg.minStart > s.latestExistingStartTime {
		s.latestExistingStartTime = cfg.minStart
	}
	s.Scheduler.AddProtocols([]*Protocol{protocol})
	return protocol, nil
}

// acquireInstance reuses a cached instance of template if it has remaining
// capacity, otherwise clones a fresh one and caches it.
func (s *System) acquireInstance(template *Task) *Task {
	if cached, ok := s.currentTaskInstances[template.ID]; ok && cached.UtilizedCapacity < cached.Capacity {
		cached.UtilizedCapacity++
		return cached
	}
	instance := template.Clone()
	instance.UtilizedCapacity = 1
	s.currentTaskInstances[template.ID] = instance
	if instance.CapacityRisksInfeasibility() {
		s.logger.Warn("task has capacity > 1 and immediate=true; schedules are typically infeasible",
			"task", instance.Name, "capacity", instance.Capacity)
	}
	return instance
}

func (s *System) generateTransitionTask(nextTask *Task, source, destination *Worker) (*Task, error) {
	byDest, ok := s.transitions[source.Name]
	if !ok {
		return nil, newValidationError("System", "%q is not a valid worker in this system (transition for %q)", source.Name, nextTask.Name)
	}
	template, ok := byDest[destination.Name]
	if !ok {
		return nil, newValidationError("System", "no transition defined from %q to %q", source.Name, destination.Name)
	}
	transition := template.Clone()
	if !transition.Immediate {
		transition.Immediate = nextTask.Immediate
	}
	transition.Precedent = append([]*Task(nil), nextTask.Precedent...)
	return transition, nil
}

// Solve is a convenience wrapper around Scheduler.Solve with no breakpoint
// phases, matching spec.md §6's System.Solve(solve_time) surface.
func (s *System) Solve(ctx context.Context, solveTime time.Duration) (Status, error) {
	return s.Scheduler.Solve(ctx, solveTime, nil)
}

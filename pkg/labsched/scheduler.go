package labsched

import (
	"context"
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"

	mk "github.com/gitrdm/gokando/pkg/minikanren"
)

// Scheduler drives the actual constraint solve: it flattens a System's
// registered protocols into a single tasklist, builds a gokando model from
// it, and writes solved start/end times back onto each Task. See
// scheduler.py in the original for the algorithm this ports.
type Scheduler struct {
	system   *System
	tasklist []*Task
	protocols []*Protocol

	numTasksOnLastSolve int
	logger              hclog.Logger
}

// SchedulerOption configures optional Scheduler fields.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger installs a structured logger; defaults to a null
// logger.
func WithSchedulerLogger(l hclog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler constructs a Scheduler bound to sys. Most callers get a
// Scheduler for free via NewSystem/System.Scheduler rather than calling this
// directly.
func NewScheduler(sys *System, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{system: sys, logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddProtocols registers protocols for scheduling, skipping any already
// present (by Protocol.Equal).
func (s *Scheduler) AddProtocols(protocols []*Protocol) {
	for _, p := range protocols {
		already := false
		for _, existing := range s.protocols {
			if existing.Equal(p) {
				already = true
				break
			}
		}
		if !already {
			s.protocols = append(s.protocols, p)
		}
	}
}

// ClearProtocols drops every registered protocol and resets solve state.
func (s *Scheduler) ClearProtocols() {
	s.numTasksOnLastSolve = 0
	s.protocols = nil
	s.tasklist = nil
}

// Flex un-solves every task that started at or after t, across every
// registered protocol, so a subsequent Solve can move them. Tasks that
// started strictly before t are left fixed in place.
func (s *Scheduler) Flex(t int) {
	flexed := false
	for _, p := range s.protocols {
		for _, task := range p.Worklist {
			if task.Start != Unsolved && task.Start >= t {
				task.Start = Unsolved
				task.End = Unsolved
				flexed = true
			}
		}
	}
	if flexed {
		// An unchanged tasklist size no longer means the last solution is
		// still valid, so the next Solve must not be skipped as a no-op.
		s.numTasksOnLastSolve = 0
	}
}

// buildTasklist flattens every protocol's worklist into a single ordered
// tasklist, per protocol, up through (and including) the first task in
// breakpoints - later tasks in that protocol are deferred to a subsequent
// solve unless they're immediate-chained off an already-included task or
// already solved. Ports _build_tasklist from the original scheduler.
func (s *Scheduler) buildTasklist(breakpoints []*Task) {
	isBreakpoint := make(map[string]bool, len(breakpoints))
	for _, b := range breakpoints {
		isBreakpoint[b.ID] = true
	}

	s.tasklist = nil
	for _, p := range s.protocols {
		i := 0
		reachedBreakpoint := len(isBreakpoint) == 0
		for ; i < len(p.Worklist); i++ {
			task := p.Worklist[i]
			s.tasklist = append(s.tasklist, task)
			if isBreakpoint[task.ID] {
				i++
				reachedBreakpoint = true
				break
			}
		}
		if !reachedBreakpoint {
			continue
		}
		stillImmediate := true
		for ; i < len(p.Worklist); i++ {
			task := p.Worklist[i]
			if !task.Immediate {
				stillImmediate = false
			}
			if stillImmediate || task.Start != Unsolved {
				s.tasklist = append(s.tasklist, task)
			}
		}
	}
}

// Solve builds a model from the current tasklist and runs the solver for
// solveTime, split across any breakpoint phases plus one final unconstrained
// pass, mirroring the original's solve(solve_time, breakpoints). Each phase
// writes solved Start/End/SolutionCount back onto the relevant Tasks.
func (s *Scheduler) Solve(ctx context.Context, solveTime time.Duration, breakpointPhases [][]*Task) (Status, error) {
	phases := len(breakpointPhases) + 1
	perPhase := solveTime / time.Duration(phases)

	var status Status
	for _, bp := range breakpointPhases {
		if len(bp) == 0 {
			continue
		}
		s.buildTasklist(bp)
		var err error
		status, err = s.solveOnce(ctx, perPhase)
		if err != nil {
			return status, err
		}
		s.logger.Debug("intermediate solution", "status", status.String())
	}

	s.buildTasklist(nil)
	status, err := s.solveOnce(ctx, perPhase)
	if err != nil {
		return status, err
	}
	s.logger.Debug("solution", "status", status.String())
	return status, nil
}

func (s *Scheduler) solveOnce(ctx context.Context, solveTime time.Duration) (Status, error) {
	if len(s.tasklist) == s.numTasksOnLastSolve {
		s.logger.Warn("previous solution still valid - add new protocols before solving again")
		return StatusUnknown, nil
	}

	bm, err := buildModel(s.tasklist, s.system.Workers, s.protocols, s.system.EnforceProtocolOrder)
	if err != nil {
		return StatusUnknown, err
	}

	if bm.objective == nil {
		// Nothing left to optimize; every task in the tasklist is already
		// solved.
		s.numTasksOnLastSolve = len(s.tasklist)
		return StatusOptimal, nil
	}

	solver := mk.NewSolver(bm.model)
	opts := []mk.OptimizeOption{mk.WithTimeLimit(solveTime), mk.WithParallelWorkers(runtime.NumCPU())}
	solution, _, err := solver.SolveOptimalWithOptions(ctx, bm.objective, true, opts...)
	if err != nil && err != mk.ErrSearchLimitReached {
		return StatusUnknown, err
	}
	limited := err == mk.ErrSearchLimitReached
	if solution == nil {
		if limited {
			// The time/node budget ran out before the search could prove
			// infeasibility either way: report UNKNOWN, not INFEASIBLE.
			return StatusUnknown, nil
		}
		return StatusInfeasible, nil
	}

	taskIDs := make(map[string]bool, len(s.tasklist))
	for _, t := range s.tasklist {
		taskIDs[t.ID] = true
	}
	for _, p := range s.protocols {
		for _, task := range p.Worklist {
			if !taskIDs[task.ID] {
				continue
			}
			startVar := bm.startVars[task.ID]
			endVar := bm.endVars[task.ID]
			task.Start = realTime(solution[startVar.ID()])
			task.End = realTime(solution[endVar.ID()])
			task.SolutionCount++
		}
	}
	s.numTasksOnLastSolve = len(s.tasklist)

	if limited {
		return StatusFeasible, nil
	}
	return StatusOptimal, nil
}

// GetTasklist returns the current tasklist ordered by solved start time. If
// onlyRecent is true, only tasks solved at most once so far are included
// (i.e. tasks newly scheduled by the most recent Solve call).
func (s *Scheduler) GetTasklist(onlyRecent bool) []*Task {
	var out []*Task
	for _, t := range s.tasklist {
		if onlyRecent && t.SolutionCount > 1 {
			continue
		}
		out = append(out, t)
	}
	sortTasksByStart(out)
	return out
}

// GetTasklistByWorker is GetTasklist grouped by each task's primary worker
// (Workers[0]).
func (s *Scheduler) GetTasklistByWorker(onlyRecent bool) map[string][]*Task {
	out := make(map[string][]*Task, len(s.system.Workers))
	for _, w := range s.system.Workers {
		out[w.Name] = nil
	}
	for _, t := range s.tasklist {
		if onlyRecent && t.SolutionCount > 1 {
			continue
		}
		if len(t.Workers) == 0 {
			continue
		}
		primary := t.Workers[0].Name
		out[primary] = append(out[primary], t)
	}
	for name := range out {
		sortTasksByStart(out[name])
	}
	return out
}

func sortTasksByStart(tasks []*Task) {
	for i := 1; i < len(tasks); i++ {
		for j := i; j > 0 && tasks[j-1].Start > tasks[j].Start; j-- {
			tasks[j-1], tasks[j] = tasks[j], tasks[j-1]
		}
	}
}

package labsched

import (
	"fmt"

	mk "github.com/gitrdm/gokando/pkg/minikanren"
)

// gokando's BitSetDomain is 1-indexed (values live in [1, MaxValue]); the
// schedules this package builds are naturally 0-indexed (a task can start at
// time 0). modelTime/realTime translate between the two so every other file
// can keep thinking in ordinary, 0-based schedule time.
func modelTime(t int) int { return t + 1 }
func realTime(v int) int  { return v - 1 }

// rangeDomain builds the contiguous domain [lo, hi] in model-time units.
// gokando has no built-in contiguous range constructor besides the
// from-values form, so the value list is materialized directly; schedule
// horizons in this package are small enough (sum of task durations) that
// this costs nothing worth optimizing.
func rangeDomain(lo, hi int) *mk.BitSetDomain {
	if hi < lo {
		hi = lo
	}
	values := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		values = append(values, v)
	}
	return mk.NewBitSetDomainFromValues(hi, values)
}

func singletonDomain(v int) *mk.BitSetDomain {
	return mk.NewBitSetDomainFromValues(v, []int{v})
}

// buildModel translates a tasklist into a gokando constraint model, mirroring
// _initialize_model from the original CP-SAT scheduler: one start/end
// variable pair per task, worker occupancy via Cumulative/NoOverlap, the
// unit-capacity "sample span" rule (generalized to Reservoir workers, see
// reservoir.go), optional strict protocol ordering, and a makespan objective.
type builtModel struct {
	model     *mk.Model
	startVars map[string]*mk.FDVariable
	endVars   map[string]*mk.FDVariable
	objective *mk.FDVariable // nil if nothing remains to optimize
	horizon   int
}

func buildModel(tasklist []*Task, workers []*Worker, protocols []*Protocol, enforceProtocolOrder bool) (*builtModel, error) {
	model := mk.NewModel()

	minStarts := 0
	durationSum := 0
	for _, t := range tasklist {
		if t.MinStart > minStarts {
			minStarts = t.MinStart
		}
		durationSum += t.Duration
	}
	horizon := durationSum + minStarts

	startVars := make(map[string]*mk.FDVariable, len(tasklist))
	endVars := make(map[string]*mk.FDVariable, len(tasklist))
	var endingVariables []*mk.FDVariable

	// Pass 1: end variables. A task already solved by a prior staged solve
	// becomes a constant; otherwise it's free within its feasible window.
	for _, task := range tasklist {
		if task.End != Unsolved {
			endVars[task.ID] = model.NewVariableWithName(singletonDomain(modelTime(task.End)), "end:"+task.ID)
			continue
		}
		lo := modelTime(task.Duration + task.MinStart)
		hi := modelTime(horizon)
		v := model.NewVariableWithName(rangeDomain(lo, hi), "end:"+task.ID)
		endVars[task.ID] = v
		endingVariables = append(endingVariables, v)
	}

	// Pass 2: start variables, chained to precedents, tied to end variables.
	for _, task := range tasklist {
		var startVar *mk.FDVariable
		precedent := lastPrecedent(task)

		switch {
		case task.Immediate && precedent != nil && endVars[precedent.ID] != nil:
			// Immediate tasks start the instant their precedent ends: share
			// the variable rather than constraining equality between two.
			startVar = endVars[precedent.ID]
		case task.Start != Unsolved:
			startVar = model.NewVariableWithName(singletonDomain(modelTime(task.Start)), "start:"+task.ID)
		default:
			lo := modelTime(task.MinStart)
			hi := modelTime(horizon)
			startVar = model.NewVariableWithName(rangeDomain(lo, hi), "start:"+task.ID)
			if precedent != nil && endVars[precedent.ID] != nil {
				ineq, err := mk.NewInequality(startVar, endVars[precedent.ID], mk.GreaterEqual)
				if err != nil {
					return nil, fmt.Errorf("labsched: precedent ordering for %q: %w", task.Name, err)
				}
				model.AddConstraint(ineq)
			}
		}
		startVars[task.ID] = startVar

		arith, err := mk.NewArithmetic(startVar, endVars[task.ID], task.Duration)
		if err != nil {
			return nil, fmt.Errorf("labsched: start/end link for %q: %w", task.Name, err)
		}
		model.AddConstraint(arith)
	}

	// Worker occupancy: every worker's assigned tasks share resource
	// capacity while running, regardless of Reservoir status — Reservoir
	// only changes how idle dwell time between tasks is accounted for
	// (below).
	inTasklist := make(map[string]bool, len(tasklist))
	for _, t := range tasklist {
		inTasklist[t.ID] = true
	}
	for _, w := range workers {
		var starts []*mk.FDVariable
		var durations []int
		for _, task := range tasklist {
			if !taskUsesWorker(task, w) {
				continue
			}
			starts = append(starts, startVars[task.ID])
			durations = append(durations, task.Duration)
		}
		if len(starts) == 0 {
			continue
		}
		if w.Capacity > 1 {
			demands := make([]int, len(starts))
			for i := range demands {
				demands[i] = 1
			}
			cum, err := mk.NewCumulative(starts, durations, demands, w.Capacity)
			if err != nil {
				return nil, fmt.Errorf("labsched: cumulative constraint for worker %q: %w", w.Name, err)
			}
			model.AddConstraint(cum)
		} else {
			noOverlap, err := mk.NewNoOverlap(starts, durations)
			if err != nil {
				return nil, fmt.Errorf("labsched: no-overlap constraint for worker %q: %w", w.Name, err)
			}
			model.AddConstraint(noOverlap)
		}
	}

	// Sample-span / reservoir dwell constraints (spec.md §4.2.5, §4.4). The
	// original only ever builds spanning_tasks for capacity==1 workers
	// (`spanning_tasks = {w: [] for w in self.system.workers if w.capacity
	// == 1}`); a Capacity>1, non-Reservoir worker shares capacity the same
	// way it does for ordinary task occupancy above and gets no separate
	// dwell rule at all.
	for _, w := range workers {
		if !w.UnitCapacity() && !w.Reservoir {
			continue
		}
		pairs := dwellPairs(protocols, inTasklist, w, startVars, endVars)
		if len(pairs) == 0 {
			continue
		}
		capacity := 1
		if w.Reservoir {
			capacity = w.Capacity - w.InitialFill
			if capacity < 1 {
				capacity = 1
			}
		}
		if err := enforceMaxOverlap(model, pairs, capacity); err != nil {
			return nil, fmt.Errorf("labsched: dwell constraint for worker %q: %w", w.Name, err)
		}
	}

	if enforceProtocolOrder {
		for i := 1; i < len(protocols); i++ {
			prev, cur := protocols[i-1], protocols[i]
			if len(prev.Worklist) == 0 || len(cur.Worklist) == 0 {
				continue
			}
			prevStart := startVars[prev.Worklist[0].ID]
			curStart := startVars[cur.Worklist[0].ID]
			if prevStart == nil || curStart == nil {
				continue
			}
			ineq, err := mk.NewInequality(curStart, prevStart, mk.GreaterThan)
			if err != nil {
				return nil, fmt.Errorf("labsched: protocol order between %q and %q: %w", prev.Name, cur.Name, err)
			}
			model.AddConstraint(ineq)
		}
	}

	bm := &builtModel{model: model, startVars: startVars, endVars: endVars, horizon: horizon}
	if len(endingVariables) > 0 {
		objective := model.NewVariableWithName(rangeDomain(modelTime(0), modelTime(horizon)), "makespan")
		max, err := mk.NewMax(endingVariables, objective)
		if err != nil {
			return nil, fmt.Errorf("labsched: makespan objective: %w", err)
		}
		model.AddConstraint(max)
		bm.objective = objective
	}
	return bm, nil
}

func lastPrecedent(t *Task) *Task {
	if len(t.Precedent) == 0 {
		return nil
	}
	return t.Precedent[len(t.Precedent)-1]
}

func taskUsesWorker(t *Task, w *Worker) bool {
	for _, tw := range t.Workers {
		if tw.Equal(w) {
			return true
		}
	}
	return false
}

// dwellPair is a derived interval spanning from the moment a sample arrives
// at a worker (a Transition's start) to the moment it next departs (the
// following Transition's end), per-protocol. See the original scheduler's
// spanning_tasks construction.
type dwellPair struct {
	start *mk.FDVariable
	end   *mk.FDVariable
}

func dwellPairs(protocols []*Protocol, inTasklist map[string]bool, w *Worker, startVars, endVars map[string]*mk.FDVariable) []dwellPair {
	var pairs []dwellPair
	for _, p := range protocols {
		for i, task0 := range p.Worklist {
			if !inTasklist[task0.ID] || !task0.IsTransition() || !task0.Destination.Equal(w) {
				continue
			}
			for _, task1 := range p.Worklist[i:] {
				if !inTasklist[task1.ID] || !task1.IsTransition() || !task1.Source.Equal(w) {
					continue
				}
				if s, ok := startVars[task0.ID]; ok {
					if e, ok2 := endVars[task1.ID]; ok2 {
						pairs = append(pairs, dwellPair{start: s, end: e})
					}
				}
				break
			}
		}
	}
	return pairs
}

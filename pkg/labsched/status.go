package labsched

// Status reports the outcome of a Scheduler.Solve or System.Solve call,
// mirroring the CP-SAT status names the original implementation printed via
// solver.StatusName().
type Status int

const (
	// StatusUnknown means the solver made no progress before returning, e.g.
	// an empty tasklist (nothing to solve).
	StatusUnknown Status = iota
	// StatusOptimal means a makespan-minimal schedule was found and proven
	// optimal within the given time budget.
	StatusOptimal
	// StatusFeasible means a valid schedule was found but the search was cut
	// off (time or node limit) before optimality could be proven.
	StatusFeasible
	// StatusInfeasible means no valid schedule exists for the current
	// tasklist and constraints.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

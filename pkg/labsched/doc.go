// Package labsched schedules batches of laboratory automation protocols
// across a fixed set of resources.
//
// Given a pool of Workers with capacities, a directed multigraph of
// permitted inter-Worker Transitions, and a set of Protocols (each an
// ordered worklist of Tasks), the Scheduler builds a constraint model,
// drives a constraint solver to optimality within a time budget, and
// writes solved start/end times back onto the Tasks.
//
// The package is organized bottom-up, mirroring its own dependency order:
// Worker, Task, Transition, Protocol, System (the authoring layer), and
// Scheduler (the core, built on github.com/gitrdm/gokando).
package labsched

// Package machine models the physical and logical state of a motion controller:
// axes and units, sparse positions, the run state machine and the State Tracker
// that folds firmware reports into a consistent State snapshot.
//
// # Work position
//
// The tracker keeps the invariant
//
//	WorkPosition = MachinePosition - WorkOffset
//
// after every update, whichever of the three values the firmware reported.
//
// # Ownership
//
// The tracker never calls out. Each update function returns a Change describing
// the previous and current snapshot, and the owner (the streaming controller)
// decides whom to notify.
package machine

package anim

import "time"

// Action is an opaque deferred visual operation.
type Action func()

// Job is one animation step.
//
// CycleOffset is measured from the start of the current cycle.
// InstructionOffset is measured from the start of the instruction that
// scheduled it and is what Replay plays back.
type Job struct {
	CycleOffset       time.Duration
	InstructionOffset time.Duration
	Action            Action
}

// entry is a Job as held by the store.
type entry struct {
	job Job
	gen uint64 // cycle generation at enqueue time
	seq uint64 // insertion order, breaks offset ties

	index int // heap position, -1 once removed
}

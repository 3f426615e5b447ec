package iqs

import "errors"

var (
	// ErrRuleWroteOOB is returned when a Rule.Expand call writes past the
	// maxChildSize it declared during Enumerate.
	ErrRuleWroteOOB = errors.New("iqs: rule wrote child bytes past declared maxChildSize")

	// ErrMemoryExhausted denotes a memory budget below the configured
	// minimum vector size. No function in this module returns it: the
	// memory-budget oracle never reports less than that floor.
	ErrMemoryExhausted = errors.New("iqs: memory budget exhausted below minimum vector size")

	// ErrCommFailure denotes a failed collective or point-to-point
	// exchange. No function in this module returns it: Communicator
	// methods report no errors, and SimulateDistributed does not detect
	// communication failures.
	ErrCommFailure = errors.New("iqs: distributed communicator failure")

	// ErrEmptyState denotes an operation that needs at least one object
	// on an empty state. No function in this module returns it; Simulate
	// on an empty state succeeds and leaves it empty.
	ErrEmptyState = errors.New("iqs: state has no objects")

	// ErrRuleChildCountMismatch is returned when stage 7 re-expansion
	// produces a child of a different length than stage 3 recorded for the
	// same (parent, childIndex) pair, meaning the rule is non-deterministic.
	ErrRuleChildCountMismatch = errors.New("iqs: rule produced a different child length on re-expansion")
)

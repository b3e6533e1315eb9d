package glprog

import "errors"

var (
	// ErrNotLinked is returned by uniform and pipeline operations on a
	// program without a successful link.
	ErrNotLinked = errors.New("glprog: program not linked")

	// ErrInvalidLocation is returned for a uniform location outside the
	// program's location table.
	ErrInvalidLocation = errors.New("glprog: invalid uniform location")

	// ErrTypeMismatch is returned when an entry point's type cannot write or
	// read the uniform's declared type.
	ErrTypeMismatch = errors.New("glprog: uniform type mismatch")

	// ErrLinkConsistency is returned when a used, non-opaque uniform
	// location has no storage in any stage's default block.
	ErrLinkConsistency = errors.New("glprog: uniform has no default block storage")

	// ErrUniformMismatch is returned when two stages declare the same
	// uniform differently.
	ErrUniformMismatch = errors.New("glprog: uniform declared differently across stages")

	// ErrLocationConflict is returned when explicit uniform locations
	// overlap.
	ErrLocationConflict = errors.New("glprog: overlapping uniform locations")

	// ErrNoStages is returned when linking a program with no attached stage.
	ErrNoStages = errors.New("glprog: no shader stages attached")

	// ErrNoDevice is returned when an operation needs a HAL device and the
	// program has none.
	ErrNoDevice = errors.New("glprog: no HAL device")

	// ErrIncompatibleBinary is returned by Load for a document written by
	// an unsupported version.
	ErrIncompatibleBinary = errors.New("glprog: incompatible program binary")

	// ErrBindingConflict is returned when a stage's default block binding
	// is already used by another stage's block or by an opaque resource,
	// or is outside bind group 0.
	ErrBindingConflict = errors.New("glprog: default uniform block binding conflict")

	// ErrInvalidValue is returned for a negative uniform count.
	ErrInvalidValue = errors.New("glprog: invalid value")

	// ErrWarmUp wraps a pipeline warm-up failure returned from Link.
	ErrWarmUp = errors.New("glprog: pipeline warm-up failed")
)

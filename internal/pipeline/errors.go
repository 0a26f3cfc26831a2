package pipeline

import "errors"

// Fatal configuration and input errors. The command surfaces these with
// exit status 1 after the run log is flushed.
var (
	// ErrConfigConflict marks mutually exclusive or invalid options.
	ErrConfigConflict = errors.New("conflicting configuration")

	// ErrMissingInput marks a named input that does not exist.
	ErrMissingInput = errors.New("missing input")

	// ErrNoUsableScenes marks a run whose filters left nothing to stack.
	ErrNoUsableScenes = errors.New("no usable scenes")
)

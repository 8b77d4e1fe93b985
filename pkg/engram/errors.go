package engram

import "errors"

var (
	// ErrInvalidConfig indicates a missing or unusable collaborator at
	// construction.
	ErrInvalidConfig = errors.New("invalid memory configuration")

	// ErrMissingScope indicates an operation arrived without any scoping
	// identifier. At least one of user id, agent id or run id is required.
	ErrMissingScope = errors.New("at least one of user_id, agent_id or run_id is required")

	// ErrEmptyInput indicates an add or search call with nothing to work on.
	ErrEmptyInput = errors.New("empty input")
)

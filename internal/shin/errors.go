package shin

import "errors"

var (
	// ErrInvalidProblem indicates solver preconditions were not met
	ErrInvalidProblem = errors.New("invalid shin problem")

	// ErrTooFewOdds indicates fewer than two prices were supplied
	ErrTooFewOdds = errors.New("at least two odds are required")

	// ErrInvalidOdds indicates a price below 1
	ErrInvalidOdds = errors.New("all odds must be >= 1")
)

package trajectory

import "errors"

// Error implements errors unique to a trajectory buffer
type Error struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

var errInsufficientData = errors.New("insufficient data in buffer")

var errInvalidBatchSize = errors.New("batch size must be positive")

// IsInsufficientData returns whether or not an error reports that
// there are fewer transitions in the buffer than were requested.
func IsInsufficientData(err error) bool {
	return errors.Is(err, errInsufficientData)
}

// IsInvalidBatchSize returns whether or not an error reports that a
// non-positive number of transitions were requested.
func IsInvalidBatchSize(err error) bool {
	return errors.Is(err, errInvalidBatchSize)
}

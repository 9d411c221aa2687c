package aggregate

import "fmt"

// ComputeError is returned by Fetch when the setter for Key failed. Every caller
// that waited on the same computation receives the same ComputeError.
type ComputeError struct {
	Key string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

package pipeline

import "fmt"

// TransformationError is the single failure type callers of Transform see.
// Stage-local errors are wrapped here with their original message intact.
type TransformationError struct {
	Stage string // "text" | "fields"
	Err   error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation failed (%s stage): %v", e.Stage, e.Err)
}

func (e *TransformationError) Unwrap() error {
	return e.Err
}

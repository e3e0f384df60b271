package fields

import "fmt"

// FieldExtractionError signals an unexpected internal fault in the pattern
// matching stage. A field that simply has no match is a normal outcome and
// never produces this error.
type FieldExtractionError struct {
	Err error
}

func (e *FieldExtractionError) Error() string {
	return fmt.Sprintf("field extraction failed: %v", e.Err)
}

func (e *FieldExtractionError) Unwrap() error {
	return e.Err
}

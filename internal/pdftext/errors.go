package pdftext

import "fmt"

// ExtractionError means no text layer could be produced from the input
// document. It is unrecoverable per document; retrying the same file is
// pointless.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed for %q: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

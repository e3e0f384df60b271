package extract

import (
	"context"
	"time"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text     string
	Pages    int
	Method   string // "pdf-text" | "pdf-ocr" | "plain-text"
	Duration time.Duration
	Warnings []string
}

// FieldExtractor is Stage 2: text -> candidate field values.
type FieldExtractor interface {
	ExtractFields(text string) (CandidateFields, error)
}

// CandidateFields holds raw matched strings prior to type normalization.
// An empty string means the pattern cascade produced no candidate; the
// invoice number is the one field that is never empty (sentinel value).
type CandidateFields struct {
	InvoiceNumber string
	Amount        string
	Date          string
	DueDate       string
	SupplierName  string
}

// CompleteEnough reports whether the candidate set carries the minimum
// fields a bookkeeping record needs. It is a pass/fail check for callers;
// extraction itself never enforces it.
func (c CandidateFields) CompleteEnough() bool {
	return c.InvoiceNumber != "" && c.Amount != "" && c.Date != ""
}

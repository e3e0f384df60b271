package fields

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/boekhoud/invoice-pipeline/internal/extract"
)

// UnknownInvoiceNumber is the sentinel set when no invoice-number pattern
// matches. Downstream consumers rely on the literal value; a record with an
// unreadable number is still worth keeping for manual review.
const UnknownInvoiceNumber = "Unknown Invoice Number"

// Extractor applies the ordered pattern cascade to raw invoice text.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractFields runs one pass of every pattern over the whole text block.
// The first match wins per field. Missing fields come back empty (or as the
// invoice-number sentinel); only an internal fault yields an error.
func (e *Extractor) ExtractFields(text string) (cand extract.CandidateFields, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FieldExtractionError{Err: fmt.Errorf("pattern engine panic: %v", r)}
		}
	}()

	found := map[string]string{}

	// The structured document-number block outranks the generic
	// invoice-number patterns.
	if m := docNumberPattern.FindStringSubmatch(text); m != nil {
		found[fieldInvoiceNumber] = strings.TrimSpace(m[1] + " " + m[2])
	}

	for _, fp := range fieldPatterns {
		if _, done := found[fp.field]; done {
			continue
		}
		m := fp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		val := strings.TrimSpace(m[1])
		if val == "" {
			continue
		}
		if fp.hashPrefix && !strings.HasPrefix(val, "#") {
			val = "#" + val
		}
		found[fp.field] = val
	}

	cand = extract.CandidateFields{
		InvoiceNumber: found[fieldInvoiceNumber],
		Amount:        found[fieldAmount],
		Date:          found[fieldDate],
		DueDate:       found[fieldDueDate],
		SupplierName:  found[fieldSupplierName],
	}

	if cand.Date == "" {
		cand.Date = e.fallbackDateScan(text)
	}
	if cand.DueDate == "" {
		// No due date on the document means it is due on the invoice date.
		cand.DueDate = cand.Date
	}
	if cand.InvoiceNumber == "" {
		cand.InvoiceNumber = UnknownInvoiceNumber
	}

	e.logger.Debug("fields.extracted",
		"invoice_number", cand.InvoiceNumber,
		"has_amount", cand.Amount != "",
		"has_date", cand.Date != "",
		"has_supplier", cand.SupplierName != "",
	)
	return cand, nil
}

// fallbackDateScan walks the text line by line and returns the first line
// that parses as a date. No scoring, no ranking: first parse wins.
func (e *Extractor) fallbackDateScan(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.ContainsAny(line, "0123456789") {
			continue
		}
		if _, err := dateparse.ParseAny(line); err == nil {
			return line
		}
	}
	return ""
}

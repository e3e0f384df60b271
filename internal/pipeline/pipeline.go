package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/boekhoud/invoice-pipeline/internal/extract"
	"github.com/boekhoud/invoice-pipeline/internal/fields"
)

// Result is the structured output of one Transform call. Absent fields are
// legitimate: Amount stays nil and dates stay empty when nothing usable was
// extracted. Dates are carried as ISO strings rather than time.Time so the
// positional Belgian reassignment survives untouched even for out-of-range
// day/month values.
type Result struct {
	FilePath      string
	InvoiceNumber string
	SupplierName  string
	Amount        *decimal.Decimal
	IssueDate     string // YYYY-MM-DD, "" when unknown
	DueDate       string // YYYY-MM-DD, "" when unknown
	NeedsReview   bool
	Warnings      []string
}

// Pipeline sequences text extraction, field matching and normalization for a
// single document. It is stateless per call; both sub-components are too.
type Pipeline struct {
	Text   extract.TextExtractor
	Fields extract.FieldExtractor
	Logger *slog.Logger
}

func NewPipeline(tx extract.TextExtractor, fx extract.FieldExtractor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Text: tx, Fields: fx, Logger: logger}
}

// Transform runs the three stages in strict sequence. Any stage failure
// comes back as a TransformationError; missing fields never do.
func (p *Pipeline) Transform(ctx context.Context, path string) (Result, error) {
	res := Result{FilePath: path}

	textRes, err := p.Text.Extract(ctx, path)
	if err != nil {
		return res, &TransformationError{Stage: "text", Err: err}
	}
	res.Warnings = append(res.Warnings, textRes.Warnings...)

	cand, err := p.Fields.ExtractFields(textRes.Text)
	if err != nil {
		return res, &TransformationError{Stage: "fields", Err: err}
	}

	res.InvoiceNumber = cand.InvoiceNumber
	res.SupplierName = cand.SupplierName

	if cand.Amount != "" {
		format := fields.DetectAmountFormat(cand.Amount)
		if d, aerr := fields.StandardizeAmount(cand.Amount, format); aerr == nil {
			res.Amount = &d
		} else {
			p.Logger.Warn("amount candidate did not normalize", "raw", cand.Amount, "error", aerr)
			res.Warnings = append(res.Warnings, "unparsable amount: "+cand.Amount)
		}
	}
	if iso, ok := fields.StandardizeDate(cand.Date, p.Logger); ok {
		res.IssueDate = iso
	}
	if iso, ok := fields.StandardizeDate(cand.DueDate, p.Logger); ok {
		res.DueDate = iso
	}

	if !cand.CompleteEnough() {
		res.NeedsReview = true
	}
	if err := p.validateResult(res); err != nil {
		p.Logger.Warn("extracted fields failed schema validation", "path", path, "error", err)
		res.NeedsReview = true
		res.Warnings = append(res.Warnings, "schema: "+err.Error())
	}

	p.Logger.Info("pipeline.transform.ok",
		"path", path,
		"method", textRes.Method,
		"pages", textRes.Pages,
		"invoice_number", res.InvoiceNumber,
		"has_amount", res.Amount != nil,
		"issue_date", res.IssueDate,
		"due_date", res.DueDate,
		"needs_review", res.NeedsReview,
	)
	return res, nil
}

// validateResult serializes the extracted fields and checks them against the
// invoice schema. Empty optionals are omitted so only present values are judged.
func (p *Pipeline) validateResult(res Result) error {
	doc := map[string]any{
		"file_path":      res.FilePath,
		"invoice_number": res.InvoiceNumber,
	}
	if res.SupplierName != "" {
		doc["supplier_name"] = res.SupplierName
	}
	if res.Amount != nil {
		doc["amount"] = res.Amount.String()
	}
	if res.IssueDate != "" {
		doc["issue_date"] = res.IssueDate
	}
	if res.DueDate != "" {
		doc["due_date"] = res.DueDate
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return ValidateJSONAgainstSchema(BuildInvoiceJSONSchema(), b)
}

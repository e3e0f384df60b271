package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boekhoud/invoice-pipeline/internal/extract"
	"github.com/boekhoud/invoice-pipeline/internal/fields"
)

// stubTextExtractor serves canned text so pipeline tests need no real files.
type stubTextExtractor struct {
	text string
	err  error
}

func (s *stubTextExtractor) Extract(_ context.Context, _ string) (extract.TextExtractionResult, error) {
	if s.err != nil {
		return extract.TextExtractionResult{}, s.err
	}
	return extract.TextExtractionResult{Text: s.text, Pages: 1, Method: "pdf-text"}, nil
}

func newTestPipeline(text string) *Pipeline {
	return NewPipeline(&stubTextExtractor{text: text}, fields.NewExtractor(nil), nil)
}

func TestTransform_BelgianInvoice(t *testing.T) {
	p := newTestPipeline("Invoice Number: INV-2024-001\nTotal: 1.234,56\nDate: 15/03/2024")

	res, err := p.Transform(context.Background(), "/in/inv.pdf")
	require.NoError(t, err)

	assert.Equal(t, "/in/inv.pdf", res.FilePath)
	assert.Equal(t, "INV-2024-001", res.InvoiceNumber)
	require.NotNil(t, res.Amount)
	assert.Equal(t, "1234.56", res.Amount.String())
	assert.Equal(t, "2024-03-15", res.IssueDate)
	assert.Equal(t, "2024-03-15", res.DueDate, "due date follows the invoice date")
	assert.False(t, res.NeedsReview)
}

func TestTransform_EnglishInvoice(t *testing.T) {
	p := newTestPipeline("Invoice #A-77\nTotal: 450.00\nDate: 2024-06-01\nDue Date: 2024-07-01")

	res, err := p.Transform(context.Background(), "/in/a77.pdf")
	require.NoError(t, err)

	assert.Equal(t, "A-77", res.InvoiceNumber)
	require.NotNil(t, res.Amount)
	assert.Equal(t, "450", res.Amount.String())
	assert.Equal(t, "2024-06-01", res.IssueDate)
	assert.Equal(t, "2024-07-01", res.DueDate)
	assert.False(t, res.NeedsReview)
}

func TestTransform_TextStageFailure(t *testing.T) {
	cause := errors.New("unreadable pdf")
	p := NewPipeline(&stubTextExtractor{err: cause}, fields.NewExtractor(nil), nil)

	_, err := p.Transform(context.Background(), "/in/bad.pdf")
	require.Error(t, err)

	var terr *TransformationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "text", terr.Stage)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "unreadable pdf")
}

func TestTransform_IncompleteFieldsNeedReview(t *testing.T) {
	p := newTestPipeline("a letter with no figures in it at all")

	res, err := p.Transform(context.Background(), "/in/letter.pdf")
	require.NoError(t, err, "missing fields are not a transformation failure")

	assert.Equal(t, fields.UnknownInvoiceNumber, res.InvoiceNumber)
	assert.Nil(t, res.Amount)
	assert.Empty(t, res.IssueDate)
	assert.True(t, res.NeedsReview)
}

func TestTransform_UnparsableAmountIsWarning(t *testing.T) {
	// The labeled amount pattern only captures digit-led values, so an
	// unparsable candidate has to come through a currency-sigil match.
	p := newTestPipeline("Invoice Number: INV-9\nTotal: € 1,2,3,4\nDate: 01/01/2024")

	res, err := p.Transform(context.Background(), "/in/odd.pdf")
	require.NoError(t, err)
	assert.Nil(t, res.Amount)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "unparsable amount")
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildInvoiceJSONSchema()

	err := ValidateJSONAgainstSchema(schema, []byte(
		`{"file_path":"/x.pdf","invoice_number":"INV-1","amount":"1234.56","issue_date":"2024-03-15"}`))
	require.NoError(t, err)

	err = ValidateJSONAgainstSchema(schema, []byte(
		`{"file_path":"/x.pdf","invoice_number":"INV-1","issue_date":"15/03/2024"}`))
	require.Error(t, err, "non-ISO dates must fail the quality gate")

	err = ValidateJSONAgainstSchema(schema, []byte(`{"file_path":"/x.pdf"}`))
	require.Error(t, err, "invoice_number is required")

	err = ValidateJSONAgainstSchema(schema, []byte(
		`{"file_path":"/x.pdf","invoice_number":"INV-1","surprise":true}`))
	require.Error(t, err, "unknown properties are rejected")
}

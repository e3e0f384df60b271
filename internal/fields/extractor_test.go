package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFields_LabeledInvoice(t *testing.T) {
	e := NewExtractor(nil)
	text := "Invoice Number: INV-2024-001\nTotal: 1.234,56\nDate: 15/03/2024"

	cand, err := e.ExtractFields(text)
	require.NoError(t, err)

	assert.Equal(t, "INV-2024-001", cand.InvoiceNumber)
	assert.Equal(t, "1.234,56", cand.Amount)
	assert.Equal(t, "15/03/2024", cand.Date)
	assert.Equal(t, "15/03/2024", cand.DueDate, "due date defaults to the invoice date")
	assert.True(t, cand.CompleteEnough())
}

func TestExtractFields_SentinelInvoiceNumber(t *testing.T) {
	e := NewExtractor(nil)

	for _, text := range []string{
		"",
		"just some text without anything useful",
		"Total: 12.00\nDate: 01/02/2024",
	} {
		cand, err := e.ExtractFields(text)
		require.NoError(t, err)
		assert.Equal(t, UnknownInvoiceNumber, cand.InvoiceNumber, "text: %q", text)
	}
}

func TestExtractFields_DueDateFallsBackToDate(t *testing.T) {
	e := NewExtractor(nil)
	text := "Invoice Nr: F-881\nDate: 02/05/2024\nTotal: 50,00"

	cand, err := e.ExtractFields(text)
	require.NoError(t, err)
	assert.Equal(t, cand.Date, cand.DueDate)
}

func TestExtractFields_ExplicitDueDate(t *testing.T) {
	e := NewExtractor(nil)
	text := "Invoice Number: INV-7\nDate: 01/02/2024\nDue Date: 15/02/2024\nTotal: 99,95"

	cand, err := e.ExtractFields(text)
	require.NoError(t, err)
	assert.Equal(t, "01/02/2024", cand.Date)
	assert.Equal(t, "15/02/2024", cand.DueDate)
}

func TestExtractFields_ReceiptLabelGetsHashPrefix(t *testing.T) {
	e := NewExtractor(nil)

	cand, err := e.ExtractFields("Receipt Number: 4521\nTotal: 10.00")
	require.NoError(t, err)
	assert.Equal(t, "#4521", cand.InvoiceNumber)

	// A '#' sigil in the label itself is not doubled.
	cand, err = e.ExtractFields("Order #9921\nTotal: 10.00")
	require.NoError(t, err)
	assert.Equal(t, "#9921", cand.InvoiceNumber)
}

func TestExtractFields_DocumentNumberBlockWins(t *testing.T) {
	e := NewExtractor(nil)
	text := "Document Number: AB 123456\nInvoice Number: INV-1\nTotal: 20,00"

	cand, err := e.ExtractFields(text)
	require.NoError(t, err)
	assert.Equal(t, "AB 123456", cand.InvoiceNumber)
}

func TestExtractFields_FuzzyDateLineFallback(t *testing.T) {
	e := NewExtractor(nil)
	text := "ACME Corp\nMarch 5, 2024\nTotal: 99.50"

	cand, err := e.ExtractFields(text)
	require.NoError(t, err)
	assert.Equal(t, "March 5, 2024", cand.Date)
	assert.Equal(t, "March 5, 2024", cand.DueDate)
}

func TestExtractFields_SupplierName(t *testing.T) {
	e := NewExtractor(nil)
	text := "Supplier: Jansen & Zonen BV\nInvoice Number: 2024/118\nTotal: 740,30"

	cand, err := e.ExtractFields(text)
	require.NoError(t, err)
	assert.Equal(t, "Jansen & Zonen BV", cand.SupplierName)
	assert.Equal(t, "2024/118", cand.InvoiceNumber)
}

func TestExtractFields_LabelValueAcrossLineBreak(t *testing.T) {
	e := NewExtractor(nil)
	text := "Invoice Number:\nINV-55\nTotal:\n1.000,00"

	cand, err := e.ExtractFields(text)
	require.NoError(t, err)
	assert.Equal(t, "INV-55", cand.InvoiceNumber)
	assert.Equal(t, "1.000,00", cand.Amount)
}

func TestCompleteEnough(t *testing.T) {
	e := NewExtractor(nil)

	cand, err := e.ExtractFields("nothing to see here")
	require.NoError(t, err)
	assert.False(t, cand.CompleteEnough(), "sentinel alone is not complete")

	cand, err = e.ExtractFields("Invoice Number: X-1\nTotal: 10,00\nDate: 01/01/2024")
	require.NoError(t, err)
	assert.True(t, cand.CompleteEnough())
}

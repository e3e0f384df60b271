package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/boekhoud/invoice-pipeline/internal/repository"
)

type fakeInvoices struct {
	invoices []*repository.Invoice
	from, to *time.Time
}

func (f *fakeInvoices) Upsert(_ context.Context, inv *repository.Invoice) (*repository.Invoice, error) {
	return inv, nil
}

func (f *fakeInvoices) GetByFilePath(_ context.Context, _ string) (*repository.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoices) List(_ context.Context, from, to *time.Time) ([]*repository.Invoice, error) {
	f.from, f.to = from, to
	return f.invoices, nil
}

func TestExportInvoicesXLSX(t *testing.T) {
	repo := &fakeInvoices{invoices: []*repository.Invoice{
		{
			FilePath:      "invoices/abc.pdf",
			InvoiceNumber: "INV-1",
			SupplierName:  "ACME NV",
			Amount:        "1234.56",
			IssueDate:     "2024-03-15",
			DueDate:       "2024-04-15",
			NeedsReview:   true,
		},
		{
			FilePath:      "invoices/def.pdf",
			InvoiceNumber: "Unknown Invoice Number",
		},
	}}
	svc := NewService(repo, nil)

	data, err := svc.ExportInvoicesXLSX(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two invoices")

	assert.Equal(t, []string{
		"Invoice Number", "Supplier", "Amount", "Invoice Date", "Due Date", "Needs Review", "File Path",
	}, rows[0])
	assert.Equal(t, []string{
		"INV-1", "ACME NV", "1234.56", "2024-03-15", "2024-04-15", "yes", "invoices/abc.pdf",
	}, rows[1])
	assert.Equal(t, "Unknown Invoice Number", rows[2][0])
}

func TestExportInvoicesXLSX_WindowDefaults(t *testing.T) {
	repo := &fakeInvoices{}
	svc := NewService(repo, nil)

	from := time.Date(2024, 1, 1, 12, 30, 0, 0, time.Local)
	_, err := svc.ExportInvoicesXLSX(context.Background(), &from, nil)
	require.NoError(t, err)

	require.NotNil(t, repo.from)
	assert.Equal(t, "2024-01-01", repo.from.Format("2006-01-02"), "bounds are normalized to midnight UTC")
	require.NotNil(t, repo.to, "an open upper bound defaults to today")
}

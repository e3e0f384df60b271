package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/boekhoud/invoice-pipeline/internal/common"
)

// Invoice is the persisted bookkeeping record. Amount stays a decimal
// string and dates stay ISO strings; both are extracted verbatim, never
// computed.
type Invoice struct {
	ID            uuid.UUID
	FilePath      string
	InvoiceNumber string
	SupplierName  string
	Amount        string
	IssueDate     string
	DueDate       string
	NeedsReview   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InvoiceRepository is the invoice-upsert collaborator the extraction
// pipeline feeds into.
type InvoiceRepository interface {
	Upsert(ctx context.Context, inv *Invoice) (*Invoice, error)
	GetByFilePath(ctx context.Context, filePath string) (*Invoice, error)
	List(ctx context.Context, from, to *time.Time) ([]*Invoice, error)
}

type SQLInvoiceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) *SQLInvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLInvoiceRepository{db: db, logger: logger}
}

// Upsert inserts or updates the invoice keyed by file path. Re-processing
// the same stored file refreshes the extracted fields.
func (r *SQLInvoiceRepository) Upsert(ctx context.Context, inv *Invoice) (*Invoice, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := time.Now().UTC()
	inv.UpdatedAt = now
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}

	query := r.db.Rebind(`
INSERT INTO invoices (id, file_path, invoice_number, supplier_name, amount, issue_date, due_date, needs_review, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (file_path) DO UPDATE SET
	invoice_number = excluded.invoice_number,
	supplier_name  = excluded.supplier_name,
	amount         = excluded.amount,
	issue_date     = excluded.issue_date,
	due_date       = excluded.due_date,
	needs_review   = excluded.needs_review,
	updated_at     = excluded.updated_at`)

	_, err := r.db.ExecContext(ctx, query,
		inv.ID.String(), inv.FilePath, inv.InvoiceNumber, inv.SupplierName,
		inv.Amount, inv.IssueDate, inv.DueDate, boolToInt(inv.NeedsReview),
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert invoice: %w", err)
	}

	stored, err := r.GetByFilePath(ctx, inv.FilePath)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("invoice upserted",
		"id", stored.ID, "invoice_number", stored.InvoiceNumber, "file_path", stored.FilePath)
	return stored, nil
}

func (r *SQLInvoiceRepository) GetByFilePath(ctx context.Context, filePath string) (*Invoice, error) {
	query := r.db.Rebind(`
SELECT id, file_path, invoice_number, supplier_name, amount, issue_date, due_date, needs_review, created_at, updated_at
FROM invoices WHERE file_path = ?`)
	row := r.db.QueryRowContext(ctx, query, filePath)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice for %q: %w", filePath, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice by file path: %w", err)
	}
	return inv, nil
}

// List returns invoices whose issue date falls inside the window. Nil
// bounds are open; records without an issue date only show up unfiltered.
func (r *SQLInvoiceRepository) List(ctx context.Context, from, to *time.Time) ([]*Invoice, error) {
	query := `
SELECT id, file_path, invoice_number, supplier_name, amount, issue_date, due_date, needs_review, created_at, updated_at
FROM invoices`
	var args []any
	var conds []string
	if from != nil {
		conds = append(conds, "issue_date >= ?")
		args = append(args, from.Format("2006-01-02"))
	}
	if to != nil {
		conds = append(conds, "issue_date <= ?")
		args = append(args, to.Format("2006-01-02"))
	}
	if len(conds) > 0 {
		query += " WHERE issue_date <> '' AND " + joinConds(conds)
	}
	query += " ORDER BY issue_date, invoice_number"

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	var id string
	var needsReview int
	if err := row.Scan(&id, &inv.FilePath, &inv.InvoiceNumber, &inv.SupplierName,
		&inv.Amount, &inv.IssueDate, &inv.DueDate, &needsReview,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id %q: %w", id, err)
	}
	inv.ID = parsed
	inv.NeedsReview = needsReview != 0
	return &inv, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinConds(conds []string) string {
	out := conds[0]
	for _, c := range conds[1:] {
		out += " AND " + c
	}
	return out
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/boekhoud/invoice-pipeline/internal/common"
	"github.com/boekhoud/invoice-pipeline/internal/export"
	"github.com/boekhoud/invoice-pipeline/internal/fields"
	"github.com/boekhoud/invoice-pipeline/internal/ingest"
	"github.com/boekhoud/invoice-pipeline/internal/pdftext"
	"github.com/boekhoud/invoice-pipeline/internal/pipeline"
	"github.com/boekhoud/invoice-pipeline/internal/repository"
	"github.com/boekhoud/invoice-pipeline/internal/storage"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory to process invoices from (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		ocr     = flag.Bool("ocr", false, "enable OCR fallback for scanned PDFs (needs pdftoppm and tesseract)")
		fromStr = flag.String("from", "", "from date YYYY-MM-DD")
		toStr   = flag.String("to", "", "to date YYYY-MM-DD")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	var from, to *time.Time
	if *fromStr != "" {
		parsed, err := time.Parse("2006-01-02", *fromStr)
		if err != nil {
			printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		from = &parsed
	}
	if *toStr != "" {
		parsed, err := time.Parse("2006-01-02", *toStr)
		if err != nil {
			printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		to = &parsed
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Storage: backend + registry + temp lifecycle
	backend, err := storage.NewLocalBackend(cfg.Storage.BaseDir)
	if err != nil {
		logger.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	registry := storage.NewFileRegistry(cfg.Storage.RegistryPath,
		cfg.Storage.ExpirationWindow, cfg.Storage.LockTimeout, logger)
	tempStore := storage.NewTempStore(backend, registry, logger)

	// Database
	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()
	if err := repository.Migrate(ctx, db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	invoicesRepo := repository.NewInvoiceRepository(db, logger)

	// Extraction pipeline
	textExtractor := pdftext.NewExtractor(pdftext.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		OCRFallback: *ocr,
	}, logger)
	fieldExtractor := fields.NewExtractor(logger)
	pipe := pipeline.NewPipeline(textExtractor, fieldExtractor, logger)

	// Scan input directory
	scanner := ingest.NewScanner(logger)
	candidates, stats, err := scanner.ScanDirectory(*dir, true)
	if err != nil {
		logger.Error("failed to scan directory", "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete",
		"candidates", len(candidates),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed)

	processed := 0
	failures := 0
	for _, cand := range candidates {
		if err := processOne(ctx, cand, tempStore, backend, pipe, invoicesRepo, logger); err != nil {
			logger.Error("failed to process file", "path", cand.SourcePath, "error", err)
			failures++
			continue
		}
		processed++
	}

	// Export to XLSX
	exportService := export.NewService(invoicesRepo, logger)
	xlsxBytes, err := exportService.ExportInvoicesXLSX(ctx, from, to)
	if err != nil {
		logger.Error("failed to export invoices", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_processed", processed,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}

// processOne runs the two-phase workflow for a single document: stage the
// upload in temporary storage, extract fields, persist the invoice, then
// promote the file to permanent storage. A failed extraction leaves the file
// in temporary storage where the expiration sweep will reclaim it.
func processOne(
	ctx context.Context,
	cand ingest.CandidateFile,
	tempStore *storage.TempStore,
	backend *storage.LocalBackend,
	pipe *pipeline.Pipeline,
	invoices repository.InvoiceRepository,
	logger *slog.Logger,
) error {
	data, err := os.ReadFile(cand.SourcePath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	tempPath, err := tempStore.StoreTemporary(ctx, data, filepath.Base(cand.SourcePath))
	if err != nil {
		return err
	}

	fsPath, err := backend.GetPath(tempPath)
	if err != nil {
		return fmt.Errorf("resolve temp path: %w", err)
	}

	res, err := pipe.Transform(ctx, fsPath)
	if err != nil {
		logger.Warn("extraction failed, leaving file in temporary storage",
			"temp_path", tempPath, "error", err)
		return err
	}

	permanentID := fmt.Sprintf("invoices/%s.%s", cand.HashHex, cand.FileExt)
	permPath, err := tempStore.PromoteToPermanent(ctx, tempPath, permanentID)
	if err != nil {
		return err
	}

	inv := &repository.Invoice{
		FilePath:      permPath,
		InvoiceNumber: res.InvoiceNumber,
		SupplierName:  res.SupplierName,
		IssueDate:     res.IssueDate,
		DueDate:       res.DueDate,
		NeedsReview:   res.NeedsReview,
	}
	if res.Amount != nil {
		inv.Amount = res.Amount.String()
	}
	if _, err := invoices.Upsert(ctx, inv); err != nil {
		return err
	}
	return nil
}

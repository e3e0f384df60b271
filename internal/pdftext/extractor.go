package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/boekhoud/invoice-pipeline/constants"
	"github.com/boekhoud/invoice-pipeline/internal/extract"
)

type Config struct {
	Pdftoppm      string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	// OCRFallback rasterizes and OCRs PDFs whose text layer is empty.
	OCRFallback bool
}

// Extractor converts invoice documents into plain text. PDF text layers are
// decoded with pdfcpu; scanned PDFs optionally fall back to external OCR.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (extract.TextExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting text extraction", "path", path, "ext", ext)

	var res extract.TextExtractionResult
	var err error
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.TXT:
		res, err = e.extractPlain(path)
	default:
		return extract.TextExtractionResult{}, &ExtractionError{Path: path, Err: fmt.Errorf("unsupported extension: %q", ext)}
	}
	res.Duration = time.Since(start)
	return res, err
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (extract.TextExtractionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return extract.TextExtractionResult{}, &ExtractionError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("close pdf", "path", path, "error", cerr)
		}
	}()

	pctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return extract.TextExtractionResult{}, &ExtractionError{Path: path, Err: fmt.Errorf("pdfcpu read: %w", err)}
	}
	if pctx.PageCount == 0 {
		return extract.TextExtractionResult{}, &ExtractionError{Path: path, Err: fmt.Errorf("document has zero pages")}
	}

	pages := pctx.PageCount
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		pages = e.cfg.MaxPages
	}

	var b strings.Builder
	for nr := 1; nr <= pages; nr++ {
		pageText := e.pageText(pctx, nr)
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(pageText)
	}
	text := cleanText(b.String())

	if strings.TrimSpace(text) != "" {
		return extract.TextExtractionResult{Text: text, Pages: pages, Method: "pdf-text"}, nil
	}

	if !e.cfg.OCRFallback {
		e.logger.Warn("pdf has no text layer and ocr fallback is disabled", "path", path)
		return extract.TextExtractionResult{
			Pages:    pages,
			Method:   "pdf-text",
			Warnings: []string{"empty text layer"},
		}, nil
	}

	e.logger.Info("pdf text layer empty, running ocr fallback", "path", path, "pages", pages)
	return e.pdfOCR(ctx, path)
}

// pageText decodes a single page's content stream; a page that cannot be
// decoded contributes an empty string rather than failing the document.
func (e *Extractor) pageText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	return textFromContentStream(r)
}

func (e *Extractor) extractPlain(path string) (extract.TextExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.TextExtractionResult{}, &ExtractionError{Path: path, Err: err}
	}
	return extract.TextExtractionResult{Text: string(data), Pages: 1, Method: "plain-text"}, nil
}

// pdfOCR rasterizes the document and OCRs each page image.
// Page texts are joined with newlines, matching the text-layer path.
func (e *Extractor) pdfOCR(ctx context.Context, path string) (extract.TextExtractionResult, error) {
	tmpDir, err := os.MkdirTemp("", "ip-ocr-*")
	if err != nil {
		return extract.TextExtractionResult{}, &ExtractionError{Path: path, Err: err}
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.logger.Warn("remove ocr temp dir", "dir", tmpDir, "error", rerr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return extract.TextExtractionResult{Warnings: []string{string(errb)}},
			&ExtractionError{Path: path, Err: fmt.Errorf("pdftoppm: %w", err)}
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return extract.TextExtractionResult{},
			&ExtractionError{Path: path, Err: fmt.Errorf("pdftoppm produced no images")}
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.TesseractLang)
		if err != nil {
			warns = append(warns, fmt.Sprintf("tesseract %s: %v: %s", filepath.Base(img), err, errb))
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.Write(out)
	}
	return extract.TextExtractionResult{
		Text:     b.String(),
		Pages:    len(matches),
		Method:   "pdf-ocr",
		Warnings: warns,
	}, nil
}

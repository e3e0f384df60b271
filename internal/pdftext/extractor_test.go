package pdftext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte("Invoice Number: INV-1\nTotal: 10,00"), 0o644))

	e := NewExtractor(Config{}, nil)
	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Invoice Number: INV-1\nTotal: 10,00", res.Text)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "plain-text", res.Method)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := NewExtractor(Config{}, nil)

	_, err := e.Extract(context.Background(), "/in/photo.jpg")
	require.Error(t, err)

	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "/in/photo.jpg", xerr.Path)
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewExtractor(Config{}, nil)

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewExtractor_Defaults(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	assert.Equal(t, "pdftoppm", e.cfg.Pdftoppm)
	assert.Equal(t, "tesseract", e.cfg.Tesseract)
	assert.Equal(t, "eng", e.cfg.TesseractLang)
	assert.Equal(t, 300, e.cfg.DPI)
}

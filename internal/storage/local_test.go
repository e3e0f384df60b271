package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	id, err := backend.Save(ctx, []byte("invoice bytes"), "tmp/inv.pdf")
	require.NoError(t, err)
	assert.Equal(t, "tmp/inv.pdf", id)

	fsPath, err := backend.GetPath(id)
	require.NoError(t, err)
	data, err := os.ReadFile(fsPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("invoice bytes"), data)

	require.NoError(t, backend.Delete(ctx, id))

	_, err = backend.GetPath(id)
	require.Error(t, err, "a deleted identifier resolves to nothing")
	require.Error(t, backend.Delete(ctx, id), "double delete fails")
}

func TestLocalBackend_Move(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Save(ctx, []byte("payload"), "tmp/doc.pdf")
	require.NoError(t, err)

	newID, err := backend.Move(ctx, "tmp/doc.pdf", "invoices/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "invoices/doc.pdf", newID)

	_, err = backend.GetPath("tmp/doc.pdf")
	require.Error(t, err, "source is gone after the move")

	fsPath, err := backend.GetPath(newID)
	require.NoError(t, err)
	data, err := os.ReadFile(fsPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestLocalBackend_MoveMissingSource(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Move(context.Background(), "tmp/nope.pdf", "invoices/nope.pdf")
	require.Error(t, err)
}

func TestLocalBackend_RejectsEscapingIdentifiers(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"../evil.pdf", "..", "tmp/../../evil.pdf", "/etc/passwd"} {
		_, err := backend.Save(ctx, []byte("x"), id)
		assert.Error(t, err, "identifier: %q", id)
		_, err = backend.GetPath(id)
		assert.Error(t, err, "identifier: %q", id)
	}
}

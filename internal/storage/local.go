package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend implements Backend on the local filesystem under a base
// directory. Identifiers are slash-separated relative paths.
type LocalBackend struct {
	basePath string
}

func NewLocalBackend(basePath string) (*LocalBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalBackend{basePath: basePath}, nil
}

// resolve maps an identifier to an absolute path, rejecting anything that
// escapes the base directory.
func (l *LocalBackend) resolve(identifier string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(identifier))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("identifier %q escapes storage root", identifier)
	}
	return filepath.Join(l.basePath, clean), nil
}

func (l *LocalBackend) Save(ctx context.Context, data []byte, identifier string) (string, error) {
	path, err := l.resolve(identifier)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filepath.ToSlash(filepath.Clean(identifier)), nil
}

// GetPath returns the absolute filesystem path for an identifier, failing
// when no file exists there.
func (l *LocalBackend) GetPath(identifier string) (string, error) {
	path, err := l.resolve(identifier)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat %q: %w", identifier, err)
	}
	return path, nil
}

func (l *LocalBackend) Delete(ctx context.Context, identifier string) error {
	path, err := l.resolve(identifier)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Move renames source to target. Within one volume this is a native rename.
// Across volumes it copies to a temp file beside the target, renames that
// into place, then removes the source; any failure leaves the source intact.
func (l *LocalBackend) Move(ctx context.Context, source, target string) (string, error) {
	src, err := l.resolve(source)
	if err != nil {
		return "", err
	}
	dst, err := l.resolve(target)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating target directory: %w", err)
	}

	err = os.Rename(src, dst)
	if err == nil {
		return filepath.ToSlash(filepath.Clean(target)), nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return "", fmt.Errorf("moving file: %w", err)
	}

	if err := copyThenReplace(src, dst); err != nil {
		return "", fmt.Errorf("moving file across volumes: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("removing source after copy: %w", err)
	}
	return filepath.ToSlash(filepath.Clean(target)), nil
}

// copyThenReplace stages the copy next to dst and renames it into place so
// the target never holds a partial file.
func copyThenReplace(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".move-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

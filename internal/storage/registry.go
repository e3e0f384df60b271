package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// RegistryEntry records when a temporary file was created and when it stops
// being welcome.
type RegistryEntry struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

const lockRetryInterval = 25 * time.Millisecond

// FileRegistry persists path -> entry as a single JSON document next to a
// sibling ".lock" file. Every operation serializes through a cross-process
// exclusive lock and replaces the document wholesale: one lock acquisition,
// one atomic view.
type FileRegistry struct {
	path        string
	window      time.Duration
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewFileRegistry builds a registry backed by the document at path. window
// is how long tracked files live (default 24h); lockTimeout bounds the wait
// for the registry lock (default 10s).
func NewFileRegistry(path string, window, lockTimeout time.Duration, logger *slog.Logger) *FileRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	return &FileRegistry{path: path, window: window, lockTimeout: lockTimeout, logger: logger}
}

// LockPath returns the sibling lock file location.
func (r *FileRegistry) LockPath() string {
	return r.path + ".lock"
}

func (r *FileRegistry) Track(ctx context.Context, path string, createdAt time.Time) error {
	return r.withLock(ctx, func() error {
		doc := r.load()
		doc[path] = RegistryEntry{
			CreatedAt: createdAt.UTC(),
			ExpiresAt: createdAt.UTC().Add(r.window),
		}
		return r.store(doc)
	})
}

func (r *FileRegistry) Untrack(ctx context.Context, path string) (bool, error) {
	var present bool
	err := r.withLock(ctx, func() error {
		doc := r.load()
		if _, present = doc[path]; !present {
			return nil
		}
		delete(doc, path)
		return r.store(doc)
	})
	return present, err
}

func (r *FileRegistry) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	var expired []string
	err := r.withLock(ctx, func() error {
		for path, entry := range r.load() {
			if now.After(entry.ExpiresAt) {
				expired = append(expired, path)
			}
		}
		return nil
	})
	return expired, err
}

func (r *FileRegistry) IsExpired(ctx context.Context, path string, now time.Time) (bool, error) {
	var expired bool
	err := r.withLock(ctx, func() error {
		entry, ok := r.load()[path]
		expired = ok && now.After(entry.ExpiresAt)
		return nil
	})
	return expired, err
}

// withLock acquires the cross-process lock, runs fn, and releases the lock
// on every exit path. The wait is bounded; callers get ErrLockTimeout
// instead of hanging on a stuck holder.
func (r *FileRegistry) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("registry dir: %w", err)
	}

	lk := flock.New(r.LockPath())
	lctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	locked, err := lk.TryLockContext(lctx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %s", ErrLockTimeout, r.lockTimeout, r.path)
		}
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w after %s: %s", ErrLockTimeout, r.lockTimeout, r.path)
	}
	defer func() {
		if uerr := lk.Unlock(); uerr != nil {
			r.logger.Error("release registry lock", "path", r.LockPath(), "error", uerr)
		}
	}()

	return fn()
}

// load reads the registry document. Reads fail open: a missing, unreadable
// or malformed document is an empty registry, so one corrupt write can never
// lock the whole system up.
func (r *FileRegistry) load() map[string]RegistryEntry {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("registry unreadable, treating as empty", "path", r.path, "error", err)
		}
		return map[string]RegistryEntry{}
	}
	var doc map[string]RegistryEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		r.logger.Warn("registry malformed, treating as empty", "path", r.path, "error", err)
		return map[string]RegistryEntry{}
	}
	if doc == nil {
		doc = map[string]RegistryEntry{}
	}
	return doc
}

// store replaces the document wholesale. Writes fail closed: losing a write
// silently would orphan files.
func (r *FileRegistry) store(doc map[string]RegistryEntry) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

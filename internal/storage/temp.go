package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// trackAttempts bounds how often StoreTemporary retries registry tracking
// before compensating.
const trackAttempts = 3

// CleanupStats is what a cleanup sweep reports. RegistryInconsistencies
// counts files that were deleted but could not be untracked; that is a
// data-quality signal, not an operational failure.
type CleanupStats struct {
	FilesRemoved            int
	FilesFailed             int
	BytesReclaimed          int64
	RegistryInconsistencies int
}

// TempStore wraps a storage backend with the temporary-file lifecycle:
// store with expiration, atomic promotion to permanent, and expired-file
// cleanup, with the registry doing the bookkeeping.
type TempStore struct {
	backend  Backend
	registry Registry
	logger   *slog.Logger
	now      func() time.Time
}

func NewTempStore(backend Backend, registry Registry, logger *slog.Logger) *TempStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TempStore{backend: backend, registry: registry, logger: logger, now: time.Now}
}

// tempIdentifier derives a collision-resistant name under tmp/ from the base
// identifier, the current time, and a random suffix.
func (s *TempStore) tempIdentifier(identifier string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(identifier, "\\", "/"))
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." {
		name = "upload"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("tmp/%s_%d_%s%s", name, now.UTC().UnixNano(), suffix, ext)
}

// StoreTemporary saves the bytes under a fresh temporary identifier and
// tracks the resulting path. Tracking is retried a bounded number of times;
// if it still fails the just-stored file is deleted before the error is
// returned. An untracked temporary file is strictly worse than no file:
// nothing would ever expire it.
func (s *TempStore) StoreTemporary(ctx context.Context, data []byte, identifier string) (string, error) {
	now := s.now().UTC()
	tempID := s.tempIdentifier(identifier, now)

	storedPath, err := s.backend.Save(ctx, data, tempID)
	if err != nil {
		return "", &StorageError{Op: "store", Path: tempID, Err: err}
	}

	var trackErr error
	for attempt := 1; attempt <= trackAttempts; attempt++ {
		trackErr = s.registry.Track(ctx, storedPath, now)
		if trackErr == nil {
			break
		}
		s.logger.Warn("registry track failed",
			"path", storedPath, "attempt", attempt, "error", trackErr)
	}
	if trackErr != nil {
		if delErr := s.backend.Delete(ctx, storedPath); delErr != nil {
			s.logger.Error("compensating delete failed, file is orphaned",
				"path", storedPath, "track_error", trackErr, "delete_error", delErr)
			return "", &StorageError{Op: "store", Path: storedPath, Err: errors.Join(trackErr, delErr)}
		}
		return "", &StorageError{Op: "store", Path: storedPath, Err: trackErr}
	}

	s.logger.Info("stored temporary file", "path", storedPath, "bytes", len(data))
	return storedPath, nil
}

// PromoteToPermanent moves a temporary file into permanent storage and drops
// its registry entry. A path the registry never heard of is logged and the
// promotion proceeds anyway; the registry is a safety net, not the authority
// on file existence. If the move succeeded but the registry write failed,
// the returned path is valid and the error reports the stale entry.
func (s *TempStore) PromoteToPermanent(ctx context.Context, tempPath, permanentID string) (string, error) {
	newPath, err := s.backend.Move(ctx, tempPath, permanentID)
	if err != nil {
		return "", &StorageError{Op: "promote", Path: tempPath, Err: err}
	}

	present, err := s.registry.Untrack(ctx, tempPath)
	if err != nil {
		s.logger.Error("promoted file still tracked in registry",
			"temp_path", tempPath, "new_path", newPath, "error", err)
		return newPath, &StorageError{Op: "promote", Path: tempPath, Err: err}
	}
	if !present {
		s.logger.Warn("promoted path was not tracked in registry", "temp_path", tempPath)
	}

	s.logger.Info("promoted temporary file", "temp_path", tempPath, "new_path", newPath)
	return newPath, nil
}

// CleanupExpired deletes every expired temporary file. One bad file never
// blocks the rest of the batch: deletion failures are counted and the sweep
// moves on. Size lookups are best-effort, for reporting only.
func (s *TempStore) CleanupExpired(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats
	now := s.now().UTC()

	expired, err := s.registry.ListExpired(ctx, now)
	if err != nil {
		return stats, &StorageError{Op: "cleanup", Path: "", Err: err}
	}

	for _, p := range expired {
		var size int64
		if fsPath, perr := s.backend.GetPath(p); perr == nil {
			if fi, serr := os.Stat(fsPath); serr == nil {
				size = fi.Size()
			}
		}

		if err := s.backend.Delete(ctx, p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				stats.FilesFailed++
				s.logger.Error("cleanup delete failed", "path", p, "error", err)
				continue
			}
			// Registry said the file should exist and it does not: drift.
			stats.RegistryInconsistencies++
			s.logger.Warn("expired file already gone", "path", p)
		} else {
			stats.FilesRemoved++
			stats.BytesReclaimed += size
		}

		if _, err := s.registry.Untrack(ctx, p); err != nil {
			stats.RegistryInconsistencies++
			s.logger.Error("deleted but failed to untrack", "path", p, "error", err)
		}
	}

	s.logger.Info("cleanup sweep done",
		"removed", stats.FilesRemoved,
		"failed", stats.FilesFailed,
		"bytes_reclaimed", stats.BytesReclaimed,
		"registry_inconsistencies", stats.RegistryInconsistencies,
	)
	return stats, nil
}

// IsExpired is a pure registry query. Untracked paths are not (yet known to
// be) expired.
func (s *TempStore) IsExpired(ctx context.Context, path string) (bool, error) {
	return s.registry.IsExpired(ctx, path, s.now().UTC())
}

package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/boekhoud/invoice-pipeline/constants"
)

// CandidateFile is a document found on disk that is eligible for upload and
// extraction.
type CandidateFile struct {
	SourcePath string
	FileExt    string
	HashHex    string
	Size       int64
}

// DirStats aggregates one directory scan.
type DirStats struct {
	Scanned      int
	Matched      int
	Deduplicated int
	Failed       int
}

// Scanner finds invoice documents on the local filesystem.
type Scanner struct {
	logger *slog.Logger
}

func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// ScanFile hashes a single file and returns it as a candidate.
func (s *Scanner) ScanFile(path string) (CandidateFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return CandidateFile{}, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return CandidateFile{}, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		return CandidateFile{}, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("close file", "path", abs, "error", cerr)
		}
	}()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return CandidateFile{}, fmt.Errorf("hash %q: %w", abs, err)
	}

	return CandidateFile{
		SourcePath: abs,
		FileExt:    ext,
		HashHex:    hex.EncodeToString(h.Sum(nil)),
		Size:       size,
	}, nil
}

// ScanDirectory walks root, skips hidden entries if requested, and collects
// candidates. Duplicate content (same sha256) within one scan is reported
// once. Per-file failures are counted, not fatal.
func (s *Scanner) ScanDirectory(root string, skipHidden bool) ([]CandidateFile, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []CandidateFile
	var stats DirStats
	seen := map[string]struct{}{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			s.logger.Warn("walk error", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		cand, err := s.ScanFile(path)
		if err != nil {
			s.logger.Warn("scan file failed", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		if _, dup := seen[cand.HashHex]; dup {
			stats.Deduplicated++
			return nil
		}
		seen[cand.HashHex] = struct{}{}
		results = append(results, cand)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/boekhoud/invoice-pipeline/internal/common"
	"github.com/boekhoud/invoice-pipeline/internal/storage"
)

func main() {
	var (
		storageDir = flag.String("storage-dir", "", "storage base directory (defaults to STORAGE_DIR)")
		registry   = flag.String("registry", "", "registry document path (defaults to STORAGE_REGISTRY)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *storageDir != "" {
		cfg.Storage.BaseDir = *storageDir
	}
	if *registry != "" {
		cfg.Storage.RegistryPath = *registry
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	backend, err := storage.NewLocalBackend(cfg.Storage.BaseDir)
	if err != nil {
		logger.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	reg := storage.NewFileRegistry(cfg.Storage.RegistryPath,
		cfg.Storage.ExpirationWindow, cfg.Storage.LockTimeout, logger)
	tempStore := storage.NewTempStore(backend, reg, logger)

	stats, err := tempStore.CleanupExpired(context.Background())
	if err != nil {
		logger.Error("cleanup failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Cleanup complete!\n")
	fmt.Printf("- Files removed: %d\n", stats.FilesRemoved)
	fmt.Printf("- Files failed: %d\n", stats.FilesFailed)
	fmt.Printf("- Bytes reclaimed: %d\n", stats.BytesReclaimed)
	fmt.Printf("- Registry inconsistencies: %d\n", stats.RegistryInconsistencies)
}

// Package local implements the artifact store on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// Config captures the parameters for the local artifact store.
type Config struct {
	// BaseDir is the root directory where raw artifacts are stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes raw payloads under BaseDir and reads them back for
// verification and assembly.
type Store struct {
	baseDir string
}

// New creates a local filesystem-backed artifact store, validating that the
// base directory exists and is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up write probe: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// ArtifactPath builds the relative artifact path for an (entry, format) pair.
func ArtifactPath(entryID string, format corpus.Format) string {
	return filepath.Join("raw", string(format), entryID+format.Ext())
}

// Put writes data and returns the relative path recorded in the ledger.
// Failures are disk errors: fatal for the operation, safe to resume past.
func (s *Store) Put(ctx context.Context, path string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("artifact put canceled: %w", err)
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", corpus.NewError(corpus.KindDisk, fmt.Errorf("create artifact dir: %w", err))
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", corpus.NewError(corpus.KindDisk, fmt.Errorf("write artifact %s: %w", path, err))
	}
	return path, nil
}

// Get reads an artifact back. A missing file is reported via os.IsNotExist
// on the wrapped error.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("artifact get canceled: %w", err)
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

// Stat returns the artifact size in bytes.
func (s *Store) Stat(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("artifact stat canceled: %w", err)
	}
	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("stat artifact %s: %w", path, err)
	}
	return info.Size(), nil
}

// resolve joins path under baseDir and rejects traversal outside it.
func (s *Store) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("artifact path is required")
	}
	full := filepath.Clean(filepath.Join(s.baseDir, path))
	base := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path escapes base directory")
	}
	return full, nil
}

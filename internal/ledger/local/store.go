// Package local persists the ledger as a JSON file on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger"
)

// Store reads and writes a single JSON snapshot file.
type Store struct {
	path string
}

// New creates a file-backed store.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	return &Store{path: filepath.Clean(path)}, nil
}

// Path returns the snapshot location.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot. A missing file yields ledger.ErrNotFound.
func (s *Store) Load(_ context.Context) (map[string]ledger.Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	return ledger.Decode(data)
}

// Save writes the snapshot atomically through a temporary file.
func (s *Store) Save(_ context.Context, entries map[string]ledger.Entry) error {
	data, err := ledger.Encode(entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename ledger file: %w", err)
	}
	return nil
}

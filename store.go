package duckdb

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pkgz/fileutils"
)

// MemoryName is the logical name for a private in-memory database.
const MemoryName = ":memory:"

// Store maps logical database names to files under an application-private
// directory, and seeds a database file from a read-only bundle directory on
// first use. It owns no engine state.
type Store struct {
	Dir     string // destination directory for database files
	SeedDir string // optional read-only directory with pre-built databases
}

// DatabasePath resolves a logical name to a file path. Names without a
// recognized database extension get ".duckdb" appended. The in-memory name
// resolves to the empty path.
func (s *Store) DatabasePath(name string) string {
	if name == MemoryName || name == "" {
		return ""
	}
	file := name
	if !strings.HasSuffix(file, ".duckdb") && !strings.HasSuffix(file, ".db") {
		file += ".duckdb"
	}
	return filepath.Join(s.Dir, file)
}

// SeedIfMissing copies the bundled database for name into place when no file
// exists yet at the target path. A no-op for in-memory names, when the
// destination already exists, or when no seed is bundled.
func (s *Store) SeedIfMissing(name string) error {
	path := s.DatabasePath(name)
	if path == "" || s.SeedDir == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	seed := filepath.Join(s.SeedDir, filepath.Base(path))
	if _, err := os.Stat(seed); err != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	if err := fileutils.CopyFile(seed, path); err != nil {
		return fmt.Errorf("seed database %s: %w", name, err)
	}
	log.Printf("[INFO] database %s seeded from %s", name, seed)
	return nil
}

// Exists reports whether a database file exists for the logical name.
// Always false for in-memory names.
func (s *Store) Exists(name string) bool {
	path := s.DatabasePath(name)
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes the database file and its write-ahead log. Missing files
// are not an error.
func (s *Store) Delete(name string) error {
	path := s.DatabasePath(name)
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete database %s: %w", name, err)
	}
	if err := os.Remove(path + ".wal"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete database wal %s: %w", name, err)
	}
	return nil
}

package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/raid5fs/internal/logger"
)

// Store is the coordinator's single writer for file metadata and the
// global stripe counter. It is safe for concurrent use: readers (Get,
// List, Search) may proceed concurrently with each other, writers (Put,
// Delete, AdvanceStripeCounter) are mutually exclusive with everything
// else, per spec.md §5.
type Store struct {
	mu         sync.RWMutex
	path       string
	files      map[string]*FileMetadata
	nextStripe int
}

// Open loads the metadata document at path, or starts an empty store if
// the file does not exist. A present-but-unparsable document is a fatal
// configuration error (ErrCorrupt wraps the parse failure) — the caller
// (coordinator start-up) must refuse to start rather than discard it.
func Open(path string) (*Store, error) {
	s := &Store{path: path, files: make(map[string]*FileMetadata)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no existing metadata document, starting empty store", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("read metadata document %q: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	if doc.Files != nil {
		s.files = doc.Files
	}
	s.nextStripe = doc.NextStripeNumber

	logger.Info("loaded metadata document", "path", path, "files", len(s.files), "next_stripe_number", s.nextStripe)
	return s, nil
}

// persistLocked rewrites the document via write-temp-then-rename. The
// caller must hold mu for writing.
func (s *Store) persistLocked() error {
	doc := document{Files: s.files, NextStripeNumber: s.nextStripe}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metadata directory %q: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp metadata file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp metadata file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp metadata file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp metadata file into place: %w", err)
	}

	return nil
}

// Put inserts or replaces a file's metadata and durably commits it. A
// file is visible to other coordinator requests if and only if Put
// returns nil (spec.md §4.3 atomicity invariant).
func (s *Store) Put(fm *FileMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[fm.FileID] = fm
	if err := s.persistLocked(); err != nil {
		delete(s.files, fm.FileID)
		return fmt.Errorf("commit metadata for file %s: %w", fm.FileID, err)
	}

	logger.Info("committed file metadata", "file_id", fm.FileID, "filename", fm.Filename, "size", fm.Size, "stripes", len(fm.Stripes))
	return nil
}

// Delete removes a file's metadata. Idempotent: deleting an unknown
// file-id is not an error.
func (s *Store) Delete(fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[fileID]; !ok {
		return nil
	}

	removed := s.files[fileID]
	delete(s.files, fileID)
	if err := s.persistLocked(); err != nil {
		s.files[fileID] = removed
		return fmt.Errorf("persist deletion of file %s: %w", fileID, err)
	}

	logger.Info("deleted file metadata", "file_id", fileID)
	return nil
}

// Get returns the metadata for fileID, or ErrNotFound.
func (s *Store) Get(fileID string) (*FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fm, ok := s.files[fileID]
	if !ok {
		return nil, ErrNotFound
	}
	return fm, nil
}

// List returns every known file's metadata, unsorted.
func (s *Store) List() []*FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*FileMetadata, 0, len(s.files))
	for _, fm := range s.files {
		out = append(out, fm)
	}
	return out
}

// Search returns files whose filename contains substr, case-insensitive,
// unsorted.
func (s *Store) Search(substr string) []*FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(substr)
	out := make([]*FileMetadata, 0)
	for _, fm := range s.files {
		if strings.Contains(strings.ToLower(fm.Filename), needle) {
			out = append(out, fm)
		}
	}
	return out
}

// AdvanceStripeCounter returns the current global stripe number and
// increments it, having already persisted the incremented value. The
// persisted counter is therefore always a strict upper bound on any
// stripe number ever handed out for a committed stripe (spec.md §4.5).
func (s *Store) AdvanceStripeCounter() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.nextStripe
	s.nextStripe = current + 1

	if err := s.persistLocked(); err != nil {
		s.nextStripe = current
		return 0, fmt.Errorf("persist stripe counter advance: %w", err)
	}

	return current, nil
}

// StripeCounter returns the current (not-yet-issued) stripe number,
// without advancing it. Used for status reporting.
func (s *Store) StripeCounter() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextStripe
}

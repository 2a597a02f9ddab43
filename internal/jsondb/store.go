// Package jsondb provides thread-safe whole-document JSON file storage.
//
// It offers Store[T] for generic type-safe document storage. The entire
// document is kept in memory, flushed atomically on every mutation, and
// readers always observe the last successfully flushed state. Documents
// must implement the Cloner interface; Mutate works on a clone so that
// snapshots handed out earlier are never modified.
package jsondb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt is returned by Open when the document file exists but cannot
// be parsed. Callers should refuse to start rather than discard data.
var ErrCorrupt = errors.New("document file is corrupt")

// ErrNoop may be returned by a Mutate callback to indicate that no change
// was made. The flush is skipped and Mutate returns nil.
var ErrNoop = errors.New("no changes")

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Store handles storage and in-memory caching for a single JSON document.
//
// Writers serialize on the store lock: each mutation clones the current
// document, applies the change and flushes the whole document before it
// becomes visible. Readers take the last-flushed document without waiting
// for in-flight writers beyond the brief pointer swap.
type Store[T Cloner[T]] struct {
	path string

	mu  sync.RWMutex
	doc T
}

// Open creates a Store backed by path, loading the document if the file
// exists. A missing file is initialized via init and flushed once so the
// directory and file exist before first use. A present but unparsable file
// returns an error wrapping [ErrCorrupt].
func Open[T Cloner[T]](path string, init func() T) (*Store[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	s := &Store[T]{path: path}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read document file %s: %w", path, err)
		}
		s.doc = init()
		if err := s.flush(s.doc); err != nil {
			return nil, err
		}
		return s, nil
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	// A literal "null" unmarshals without error but leaves no document.
	var zero T
	if any(doc) == any(zero) {
		return nil, fmt.Errorf("%w: %s: empty document", ErrCorrupt, path)
	}
	s.doc = doc
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store[T]) Path() string {
	return s.path
}

// Snapshot returns the last-flushed document for read-only use.
//
// The returned value must not be modified; Mutate never touches documents
// returned by earlier Snapshot calls.
func (s *Store[T]) Snapshot() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Mutate applies fn to a clone of the current document under the writer
// lock, flushes the full document and makes it visible to Snapshot. If fn
// returns an error the document is unchanged; [ErrNoop] skips the flush and
// is not reported as an error. Once Mutate returns nil the change is
// durable.
func (s *Store[T]) Mutate(fn func(doc T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.doc.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoop) {
			return nil
		}
		return err
	}
	if err := s.flush(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// flush writes doc to a temporary file and atomically replaces the target,
// so a crash mid-write leaves the prior durable state intact.
func (s *Store[T]) flush(doc T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil { //nolint:gosec // G306: world-readable data file is intentional
		return fmt.Errorf("failed to write document file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace document file: %w", err)
	}
	return nil
}

package store

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/heysubinoy/rollbook/internal/codec"
	"github.com/heysubinoy/rollbook/pkg/roster"
)

// MemStore is an in-memory implementation of the roster.Store interface.
// It keeps records in insertion order in a slice protected by a RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	records []roster.Record
}

// Compile-time check to ensure MemStore implements roster.Store.
var _ roster.Store = (*MemStore)(nil)

// NewMemStore creates and returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Add appends a record to the end of the sequence.
// Always returns nil; duplicates are allowed.
func (s *MemStore) Add(record roster.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	return nil
}

// Remove deletes every record with the given roll number.
// Always returns nil, even if nothing matched.
func (s *MemStore) Remove(rollNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = slices.DeleteFunc(s.records, func(r roster.Record) bool {
		return r.RollNumber() == rollNumber
	})
	return nil
}

// Search returns the first record with the given roll number.
// Returns the record and true if found, a zero Record and false otherwise.
func (s *MemStore) Search(rollNumber int) (roster.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.RollNumber() == rollNumber {
			return r, true
		}
	}
	return roster.Record{}, false
}

// List returns a copy of all records in insertion order.
func (s *MemStore) List() []roster.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]roster.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records held.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Replace swaps the whole sequence for a copy of records.
func (s *MemStore) Replace(records []roster.Record) {
	next := make([]roster.Record, len(records))
	copy(next, records)

	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
}

// Save encodes the current sequence and writes it to path.
// The file is written to a temp file in the same directory and renamed into
// place, so a failed save leaves any previous file intact.
func (s *MemStore) Save(path string) error {
	data := codec.Marshal(s.List())
	if err := writeFileAtomic(path, data); err != nil {
		return &roster.IOError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// Load decodes the file at path and replaces the current sequence with it.
// Nothing changes unless the whole file decodes.
func (s *MemStore) Load(path string) error {
	records, err := readRecords(path)
	if err != nil {
		return err
	}
	s.Replace(records)
	return nil
}

// readRecords reads and decodes a saved roster without touching any store.
func readRecords(path string) ([]roster.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &roster.IOError{Op: "load", Path: path, Err: err}
	}
	records, err := codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &roster.DecodeError{Path: path, Err: err}
	}
	return records, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rollbook-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
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
	return os.Rename(tmpName, path)
}

// Package service is the boundary a presentation layer talks to. It takes
// input as typed into a form, validates it, calls the store and returns
// typed results from pkg/roster.
package service

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/heysubinoy/rollbook/internal/export"
	"github.com/heysubinoy/rollbook/pkg/roster"
)

// Roster validates requests and forwards them to a roster.Store.
type Roster struct {
	store   roster.Store
	dataDir string
	logger  hclog.Logger
}

// New returns a Roster over store. Save and load paths are resolved inside
// dataDir; an empty dataDir uses paths as given.
func New(store roster.Store, dataDir string, logger hclog.Logger) *Roster {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Roster{
		store:   store,
		dataDir: dataDir,
		logger:  logger,
	}
}

// ParseRollNumber parses a roll number typed as text.
func ParseRollNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &roster.ValidationError{Field: "roll number", Reason: "must be an integer"}
	}
	return n, nil
}

// AddStudent validates the three form fields and appends a new record.
func (r *Roster) AddStudent(name, rollNumber, grade string) (roster.Record, error) {
	name, grade = strings.TrimSpace(name), strings.TrimSpace(grade)
	if name == "" {
		return roster.Record{}, &roster.ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	if grade == "" {
		return roster.Record{}, &roster.ValidationError{Field: "grade", Reason: "cannot be empty"}
	}
	roll, err := ParseRollNumber(rollNumber)
	if err != nil {
		return roster.Record{}, err
	}

	rec := roster.NewRecord(name, roll, grade)
	if err := r.store.Add(rec); err != nil {
		r.logger.Warn("add failed", "roll", roll, "error", err)
		return roster.Record{}, err
	}
	r.logger.Debug("student added", "roll", roll)
	return rec, nil
}

// RemoveStudent removes every record with the given roll number.
// Succeeds even if none matched.
func (r *Roster) RemoveStudent(rollNumber string) error {
	roll, err := ParseRollNumber(rollNumber)
	if err != nil {
		return err
	}
	if err := r.store.Remove(roll); err != nil {
		r.logger.Warn("remove failed", "roll", roll, "error", err)
		return err
	}
	r.logger.Debug("student removed", "roll", roll)
	return nil
}

// SearchStudent returns the first record with the given roll number or
// roster.ErrNotFound.
func (r *Roster) SearchStudent(rollNumber string) (roster.Record, error) {
	roll, err := ParseRollNumber(rollNumber)
	if err != nil {
		return roster.Record{}, err
	}
	rec, ok := r.store.Search(roll)
	if !ok {
		return roster.Record{}, roster.ErrNotFound
	}
	return rec, nil
}

// ListStudents returns every record in insertion order.
func (r *Roster) ListStudents() []roster.Record {
	return r.store.List()
}

// SaveToDestination writes the roster to the named file.
func (r *Roster) SaveToDestination(name string) error {
	path, err := r.ResolvePath(name)
	if err != nil {
		return err
	}
	if err := r.store.Save(path); err != nil {
		r.logger.Warn("save failed", "path", path, "error", err)
		return err
	}
	r.logger.Info("roster saved", "path", path)
	return nil
}

// LoadFromSource replaces the roster with the contents of the named file.
func (r *Roster) LoadFromSource(name string) error {
	path, err := r.ResolvePath(name)
	if err != nil {
		return err
	}
	if err := r.store.Load(path); err != nil {
		r.logger.Warn("load failed", "path", path, "error", err)
		return err
	}
	r.logger.Info("roster loaded", "path", path)
	return nil
}

// LoadIfPresent is LoadFromSource for start-up: a missing file is not an
// error and reports false.
func (r *Roster) LoadIfPresent(name string) (bool, error) {
	err := r.LoadFromSource(name)
	switch {
	case err == nil:
		return true, nil
	case roster.IsIO(err) && errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, err
}

// ExportSpreadsheet writes the roster to w as an .xlsx workbook.
func (r *Roster) ExportSpreadsheet(w io.Writer) error {
	return export.WriteXLSX(w, r.store.List())
}

// ResolvePath maps a file name onto the data directory. Names must be local
// to it: absolute paths and ".." are rejected.
func (r *Roster) ResolvePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &roster.ValidationError{Field: "file name", Reason: "cannot be empty"}
	}
	if r.dataDir == "" {
		return name, nil
	}
	if !filepath.IsLocal(name) {
		return "", &roster.ValidationError{Field: "file name", Reason: "must be relative to the data directory"}
	}
	return filepath.Join(r.dataDir, name), nil
}

// Package state persists the cgroup units created by the shim so they can be
// enumerated across daemon restarts. The file is a flat keyed-group file: one
// group per unit name, string values inside.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gofrs/flock"
	"gopkg.in/ini.v1"
)

// Registry is the view of the store consumed by the unit layer.
type Registry interface {
	ListUnits() ([]string, error)
	GetString(unit, key string) (string, bool, error)
	SetString(unit, key, value string) error
	RemoveUnit(unit string) error
}

// Store is a Registry backed by an INI file. Every mutation is written
// through to disk before returning.
type Store struct {
	path string
	lock *flock.Flock
}

var _ Registry = (*Store)(nil)

// Open returns a Store for path. The file does not need to exist yet.
func Open(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (*ini.File, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Loose: true}, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load state file %s: %w", s.path, err)
	}
	return f, nil
}

// ListUnits returns the unit names recorded in the store, sorted.
func (s *Store) ListUnits() ([]string, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}

	var units []string
	for _, name := range f.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		units = append(units, name)
	}
	slices.Sort(units)
	return units, nil
}

// GetString returns the value stored under key for unit.
func (s *Store) GetString(unit, key string) (string, bool, error) {
	f, err := s.load()
	if err != nil {
		return "", false, err
	}

	sec, err := f.GetSection(unit)
	if err != nil || !sec.HasKey(key) {
		return "", false, nil
	}
	return sec.Key(key).String(), true, nil
}

// SetString stores value under key for unit and syncs the file.
func (s *Store) SetString(unit, key, value string) error {
	return s.update(func(f *ini.File) {
		f.Section(unit).Key(key).SetValue(value)
	})
}

// RemoveUnit forgets unit and syncs the file.
func (s *Store) RemoveUnit(unit string) error {
	return s.update(func(f *ini.File) {
		f.DeleteSection(unit)
	})
}

func (s *Store) update(mutate func(f *ini.File)) (err error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() {
		err = errors.Join(err, s.lock.Unlock())
	}()

	f, err := s.load()
	if err != nil {
		return err
	}
	mutate(f)
	return s.save(f)
}

// save writes f next to the target and renames it into place. The file is
// world-readable: it only holds unit names and cgroup paths.
func (s *Store) save(f *ini.File) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".systemd-shim-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

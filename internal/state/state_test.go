package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUnitsNonExistentFile(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "missing", "state"))

	units, err := s.ListUnits()
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestSetAndGetString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "systemd-shim-state")
	s := Open(path)

	require.NoError(t, s.SetString("session-1.scope", "path", "user.slice/user-1000.slice/session-1.scope"))
	require.NoError(t, s.SetString("session-1.scope", "uid", "1000"))

	value, ok, err := s.GetString("session-1.scope", "path")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user.slice/user-1000.slice/session-1.scope", value)

	_, ok, err = s.GetString("session-1.scope", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.GetString("other.scope", "path")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChangesAreDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "systemd-shim-state")

	require.NoError(t, Open(path).SetString("user-1000.slice", "path", "user.slice/user-1000.slice"))

	// A fresh store sees what the previous one wrote.
	reopened := Open(path)
	units, err := reopened.ListUnits()
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1000.slice"}, units)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[user-1000.slice]")
}

func TestListUnitsSorted(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "state"))

	for _, unit := range []string{"c.scope", "a.slice", "b.scope"} {
		require.NoError(t, s.SetString(unit, "path", unit))
	}

	units, err := s.ListUnits()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.slice", "b.scope", "c.scope"}, units)
}

func TestRemoveUnit(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "state"))

	require.NoError(t, s.SetString("a.scope", "path", "a"))
	require.NoError(t, s.SetString("b.scope", "path", "b"))
	require.NoError(t, s.RemoveUnit("a.scope"))

	units, err := s.ListUnits()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.scope"}, units)

	// Removing an unknown unit is not an error.
	assert.NoError(t, s.RemoveUnit("never-existed.scope"))
}

func TestStateFileIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	s := Open(path)

	require.NoError(t, s.SetString("a.slice", "path", "a.slice"))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
	assert.Equal(t, path, s.Path())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	require.NoError(t, os.WriteFile(path, []byte("[unterminated\n"), 0o644))

	_, err := Open(path).ListUnits()
	assert.Error(t, err)
}

package unit

import (
	"context"
	"math"
	"strconv"
	"strings"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/trly/systemd-shim/internal/cgmanager"
	"github.com/trly/systemd-shim/internal/log"
	"github.com/trly/systemd-shim/internal/state"
)

// Registry keys recorded for every created cgroup unit.
const (
	KeyPath = "path"
	KeyUID  = "uid"
)

// CgroupBackend creates cgroups.
type CgroupBackend interface {
	CreateGroup(ctx context.Context, path string, uid int, pids []uint32) cgmanager.Result
}

// CgroupUnit is a slice or a scope. Its cgroup path and owner are derived
// from the name whenever they are needed.
type CgroupUnit struct {
	name     string
	backend  CgroupBackend
	registry state.Registry
	logger   log.Logger
}

// NewCgroupUnit creates a CgroupUnit. registry may be nil.
func NewCgroupUnit(name string, backend CgroupBackend, registry state.Registry, logger log.Logger) *CgroupUnit {
	return &CgroupUnit{
		name:     name,
		backend:  backend,
		registry: registry,
		logger:   logger,
	}
}

// Name returns the unit name.
func (u *CgroupUnit) Name() string {
	return u.name
}

// State returns the unit name; callers only use it as an opaque token.
func (u *CgroupUnit) State(context.Context) string {
	return u.name
}

// Start creates the cgroup of a slice.
func (u *CgroupUnit) Start(ctx context.Context) error {
	if !strings.HasSuffix(u.name, SliceSuffix) {
		return NewUnsupportedOperationError(u.name, "Start (only slices can be started)")
	}

	uid, ok := SliceUID(u.name)
	if !ok {
		uid = cgmanager.NoUID
	}
	u.create(ctx, SlicePath(u.name), uid, nil)
	return nil
}

// StartTransient creates the cgroup of a scope below the slice named by the
// Slice property and moves the processes listed in PIDs into it. Other
// properties are ignored.
func (u *CgroupUnit) StartTransient(ctx context.Context, props []sddbus.Property) error {
	if !strings.HasSuffix(u.name, ScopeSuffix) {
		return NewUnsupportedOperationError(u.name, "StartTransient (only scopes can be started transiently)")
	}

	var slice string
	var pids []uint32
	for _, p := range props {
		switch p.Name {
		case "Slice":
			if s, ok := p.Value.Value().(string); ok {
				slice = s
			}
		case "PIDs":
			if v, ok := p.Value.Value().([]uint32); ok {
				pids = append(pids, v...)
			}
		}
	}

	if !strings.HasSuffix(slice, SliceSuffix) {
		return &InvalidPropertiesError{Unit: u.name, Reason: "requires 'Slice' property ending with '.slice'"}
	}

	uid, ok := SliceUID(slice)
	if !ok {
		uid = cgmanager.NoUID
	}
	u.create(ctx, SlicePath(slice)+"/"+u.name, uid, pids)
	return nil
}

// Stop does nothing; cgroups are removed by the backend once empty.
func (u *CgroupUnit) Stop(context.Context) error {
	return nil
}

// Abandon forgets a scope. Its processes keep running in their cgroup.
func (u *CgroupUnit) Abandon(context.Context) error {
	if !strings.HasSuffix(u.name, ScopeSuffix) {
		return NewUnsupportedOperationError(u.name, "Abandon")
	}
	if u.registry == nil {
		return nil
	}
	if err := u.registry.RemoveUnit(u.name); err != nil {
		u.logger.Warn("Failed to forget abandoned scope", "unit", u.name, "error", err)
	}
	return nil
}

func (u *CgroupUnit) create(ctx context.Context, path string, uid int, pids []uint32) {
	u.logger.Debug("Creating cgroup", "unit", u.name, "path", path, "uid", uid, "pids", pids)

	if res := u.backend.CreateGroup(ctx, path, uid, pids); !res.OK() {
		return
	}
	u.record(path, uid)
}

func (u *CgroupUnit) record(path string, uid int) {
	if u.registry == nil {
		return
	}
	if err := u.registry.SetString(u.name, KeyPath, path); err != nil {
		u.logger.Warn("Failed to record unit", "unit", u.name, "error", err)
		return
	}
	if uid != cgmanager.NoUID {
		if err := u.registry.SetString(u.name, KeyUID, strconv.Itoa(uid)); err != nil {
			u.logger.Warn("Failed to record unit owner", "unit", u.name, "error", err)
		}
	}
}

// SlicePath expands a slice name into its cgroup path: every '-' in the name
// opens a parent slice, so "a-b-c.slice" lives at
// "a.slice/a-b.slice/a-b-c.slice".
func SlicePath(slice string) string {
	var b strings.Builder
	for i := 0; i < len(slice); i++ {
		if slice[i] == '-' {
			b.WriteString(slice[:i])
			b.WriteString(".slice/")
		}
	}
	b.WriteString(slice)
	return b.String()
}

// SliceUID returns the owner of a per-user slice named "user-<uid>.slice".
func SliceUID(slice string) (int, bool) {
	digits, ok := strings.CutPrefix(slice, "user-")
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, SliceSuffix)
	if !ok || digits == "" {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}

	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || v >= math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

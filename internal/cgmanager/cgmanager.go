// Package cgmanager is a client for the cgroup management daemon that creates
// and populates the cgroups backing slice and scope units.
//
// The connection is established lazily on the first call. If that attempt
// fails, it is logged once and every later call is skipped for the lifetime
// of the Client.
package cgmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/trly/systemd-shim/internal/log"
)

// Protocol constants of the cgmanager D-Bus API.
const (
	ObjectPath         = "/org/linuxcontainers/cgmanager"
	Interface          = "org.linuxcontainers.cgmanager0_0"
	RequiredAPIVersion = 6

	// AllControllers addresses every mounted controller at once.
	AllControllers = "all"

	// NoUID leaves ownership of a created cgroup unchanged.
	NoUID = -1

	propertiesInterface = "org.freedesktop.DBus.Properties"
)

// ErrUnavailable is reported for calls skipped because no connection could be made.
var ErrUnavailable = errors.New("cgmanager unavailable")

// Result is the outcome of a best-effort call. Failures have already been
// logged by the Client; callers that do not need the outcome discard it.
type Result struct {
	err error
}

// ResultOf wraps err in a Result.
func ResultOf(err error) Result {
	return Result{err}
}

// Err returns the failure, or nil when the call succeeded.
func (r Result) Err() error {
	return r.err
}

// OK reports whether the call went through.
func (r Result) OK() bool {
	return r.err == nil
}

// Skipped reports whether the call was not issued because the manager is unavailable.
func (r Result) Skipped() bool {
	return errors.Is(r.err, ErrUnavailable)
}

// Client talks to cgmanager. It is not safe for concurrent use.
type Client struct {
	address   string
	dial      DialFunc
	logger    log.Logger
	transport Transport
	attempted bool
}

// New creates a Client for the manager listening at address.
func New(address string, logger log.Logger) *Client {
	return NewWithDialer(address, Dial, logger)
}

// NewWithDialer creates a Client that connects through dial.
func NewWithDialer(address string, dial DialFunc, logger log.Logger) *Client {
	return &Client{
		address: address,
		dial:    dial,
		logger:  logger,
	}
}

// Available connects if needed and reports whether calls will be issued.
func (c *Client) Available(ctx context.Context) bool {
	return c.connection(ctx) != nil
}

func (c *Client) connection(ctx context.Context) Transport {
	if c.attempted {
		return c.transport
	}
	c.attempted = true

	t, err := c.connect(ctx)
	if err != nil {
		c.logger.Warn("Could not connect to cgmanager", "address", c.address, "error", err)
		return nil
	}
	c.logger.Debug("Connected to cgmanager", "address", c.address)
	c.transport = t
	return t
}

func (c *Client) connect(ctx context.Context) (Transport, error) {
	t, err := c.dial(ctx, c.address)
	if err != nil {
		return nil, err
	}

	var version dbus.Variant
	if err := t.Call(ctx, propertiesInterface, "Get", Interface, "api_version").Store(&version); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("failed to query api_version: %w", err)
	}

	v, ok := version.Value().(int32)
	if !ok || v < RequiredAPIVersion {
		_ = t.Close()
		return nil, &VersionError{Version: version}
	}
	return t, nil
}

func (c *Client) call(ctx context.Context, method string, out []any, args ...any) error {
	t := c.connection(ctx)
	if t == nil {
		return ErrUnavailable
	}

	if err := t.Call(ctx, Interface, method, args...).Store(out...); err != nil {
		c.logger.Warn("cgmanager method call failed", "method", method, "error", err)
		return &CallError{Method: method, Cause: err}
	}
	return nil
}

// Create creates cgroup path under controller.
func (c *Client) Create(ctx context.Context, controller, path string) Result {
	var existed int32
	return Result{c.call(ctx, "Create", []any{&existed}, controller, path)}
}

// Chown hands cgroup path to uid/gid; -1 leaves the id unchanged.
func (c *Client) Chown(ctx context.Context, controller, path string, uid, gid int32) Result {
	return Result{c.call(ctx, "Chown", nil, controller, path, uid, gid)}
}

// MovePid moves pid into cgroup path, relative to the caller's cgroup.
func (c *Client) MovePid(ctx context.Context, controller, path string, pid int32) Result {
	return Result{c.call(ctx, "MovePid", nil, controller, path, pid)}
}

// MovePidAbs moves pid into cgroup path, relative to the root.
func (c *Client) MovePidAbs(ctx context.Context, controller, path string, pid int32) Result {
	return Result{c.call(ctx, "MovePidAbs", nil, controller, path, pid)}
}

// RemoveOnEmpty asks the manager to delete path once its last task exits.
func (c *Client) RemoveOnEmpty(ctx context.Context, controller, path string) Result {
	return Result{c.call(ctx, "RemoveOnEmpty", nil, controller, path)}
}

// SetValue writes value to the controller file key of cgroup path.
func (c *Client) SetValue(ctx context.Context, controller, path, key, value string) Result {
	return Result{c.call(ctx, "SetValue", nil, controller, path, key, value)}
}

// Remove deletes cgroup path, including children when recursive is set.
func (c *Client) Remove(ctx context.Context, controller, path string, recursive bool) Result {
	var existed int32
	var r int32
	if recursive {
		r = 1
	}
	return Result{c.call(ctx, "Remove", []any{&existed}, controller, path, r)}
}

// Prune removes empty descendants of cgroup path.
func (c *Client) Prune(ctx context.Context, controller, path string) Result {
	return Result{c.call(ctx, "Prune", nil, controller, path)}
}

// GetTasksRecursive lists the pids in cgroup path and all of its descendants.
func (c *Client) GetTasksRecursive(ctx context.Context, controller, path string) ([]int32, error) {
	var pids []int32
	if err := c.call(ctx, "GetTasksRecursive", []any{&pids}, controller, path); err != nil {
		return nil, err
	}
	return pids, nil
}

// CreateGroup creates path in every controller, hands it to uid unless it
// is NoUID, moves pids into it and marks it for removal once empty. All
// calls are issued even if an earlier one fails; the first failure is returned.
func (c *Client) CreateGroup(ctx context.Context, path string, uid int, pids []uint32) Result {
	path = strings.TrimPrefix(path, "/")

	created := c.Create(ctx, AllControllers, path)
	if created.Skipped() {
		return created
	}
	errs := []error{created.Err()}

	if uid != NoUID {
		errs = append(errs, c.Chown(ctx, AllControllers, path, int32(uid), -1).Err())
	}
	for _, pid := range pids {
		errs = append(errs, c.MovePid(ctx, AllControllers, path, int32(pid)).Err())
	}
	errs = append(errs, c.RemoveOnEmpty(ctx, AllControllers, path).Err())

	for _, err := range errs {
		if err != nil {
			return Result{err}
		}
	}
	return Result{}
}

// MoveSelf moves the calling process to the root cgroup so that the groups
// it creates are not nested under its own.
func (c *Client) MoveSelf(ctx context.Context) Result {
	return c.MovePidAbs(ctx, AllControllers, "/", int32(os.Getpid()))
}

// Close releases the connection, if any.
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.transport = nil
	return err
}

package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/trly/systemd-shim/internal/cgmanager"
	"github.com/trly/systemd-shim/internal/config"
	"github.com/trly/systemd-shim/internal/log"
	"github.com/trly/systemd-shim/internal/shim"
	"github.com/trly/systemd-shim/internal/state"
	"github.com/trly/systemd-shim/internal/testutil"
	"github.com/trly/systemd-shim/internal/testutil/fakerunner"
)

// MockConn implements BusConn for testing.
type MockConn struct {
	mu       sync.Mutex
	exported map[string]any
	subtrees map[string]map[string]any
	sent     []*dbus.Message
	closed   bool

	NameReply dbus.RequestNameReply
	NameErr   error
	// Claimed is closed once the name has been requested.
	Claimed chan struct{}
}

func NewMockConn() *MockConn {
	return &MockConn{
		exported:  map[string]any{},
		subtrees:  map[string]map[string]any{},
		NameReply: dbus.RequestNameReplyPrimaryOwner,
		Claimed:   make(chan struct{}),
	}
}

func (c *MockConn) Export(v any, path dbus.ObjectPath, iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exported[string(path)+" "+iface] = v
	return nil
}

func (c *MockConn) ExportSubtreeMethodTable(methods map[string]any, path dbus.ObjectPath, iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subtrees[string(path)+" "+iface] = methods
	return nil
}

func (c *MockConn) RequestName(_ string, _ dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	close(c.Claimed)
	return c.NameReply, c.NameErr
}

func (c *MockConn) Send(msg *dbus.Message, _ chan *dbus.Call) *dbus.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *MockConn) Manager() *shim.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.exported[shim.ObjectPath+" "+shim.ManagerInterface].(*shim.Manager)
	return m
}

func (c *MockConn) Sent() []*dbus.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*dbus.Message(nil), c.sent...)
}

func (c *MockConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CreatedGroup is one CreateGroup call seen by MockCgroups.
type CreatedGroup struct {
	Path string
	UID  int
	Pids []uint32
}

// MockCgroups implements the cgroup backend interfaces for testing.
type MockCgroups struct {
	mu          sync.Mutex
	Created     []CreatedGroup
	MovedSelf   bool
	Tasks       map[string][]int32
	Removed     []string
	Pruned      []string
	RemoveErr   error
	Unavailable bool
	Closed      bool
}

func (m *MockCgroups) Available(context.Context) bool {
	return !m.Unavailable
}

func (m *MockCgroups) CreateGroup(_ context.Context, path string, uid int, pids []uint32) cgmanager.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, CreatedGroup{Path: path, UID: uid, Pids: pids})
	return cgmanager.Result{}
}

func (m *MockCgroups) MoveSelf(context.Context) cgmanager.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MovedSelf = true
	return cgmanager.Result{}
}

func (m *MockCgroups) GetTasksRecursive(_ context.Context, _, path string) ([]int32, error) {
	tasks, ok := m.Tasks[path]
	if !ok {
		return nil, cgmanager.ErrUnavailable
	}
	return tasks, nil
}

func (m *MockCgroups) Remove(_ context.Context, _, path string, _ bool) cgmanager.Result {
	m.Removed = append(m.Removed, path)
	return cgmanager.ResultOf(m.RemoveErr)
}

func (m *MockCgroups) Prune(_ context.Context, _, path string) cgmanager.Result {
	m.Pruned = append(m.Pruned, path)
	return cgmanager.Result{}
}

func (m *MockCgroups) Close() error {
	m.Closed = true
	return nil
}

// MockStopper implements UnitStopper for testing.
type MockStopper struct {
	Name    string
	Mode    string
	StopErr error
	Closed  bool
}

func (s *MockStopper) StopUnitContext(_ context.Context, name, mode string, _ chan<- string) (int, error) {
	s.Name = name
	s.Mode = mode
	return 0, s.StopErr
}

func (s *MockStopper) Close() {
	s.Closed = true
}

// MockProvider implements config.Provider without touching viper.
type MockProvider struct {
	cfg     *config.Settings
	path    string
	InitErr error
}

func (p *MockProvider) GetConfig() *config.Settings   { return p.cfg }
func (p *MockProvider) SetConfig(c *config.Settings)  { p.cfg = c }
func (p *MockProvider) SetConfigFilePath(path string) { p.path = path }

func (p *MockProvider) InitConfig() (*config.Settings, error) {
	if p.InitErr != nil {
		return nil, p.InitErr
	}
	return p.cfg, nil
}

var errMock = errors.New("mock failure")

// AppBuilder assembles an App for command tests.
type AppBuilder struct {
	logger log.Logger
	config *config.Settings
	runner *fakerunner.Runner
}

func NewAppBuilder(t *testing.T) *AppBuilder {
	return &AppBuilder{
		logger: testutil.NewTestLogger(t),
		config: testutil.NewTestConfig(t).GetConfig(),
		runner: fakerunner.New(),
	}
}

func (b *AppBuilder) WithLogger(l log.Logger) *AppBuilder {
	b.logger = l
	return b
}

func (b *AppBuilder) WithConfig(c *config.Settings) *AppBuilder {
	b.config = c
	return b
}

func (b *AppBuilder) WithRunner(r *fakerunner.Runner) *AppBuilder {
	b.runner = r
	return b
}

func (b *AppBuilder) Build(t *testing.T) *App {
	t.Helper()
	if b.config.StatePath == "" {
		b.config.StatePath = filepath.Join(t.TempDir(), "state")
	}
	return &App{
		Logger:         b.logger,
		Config:         b.config,
		ConfigProvider: &MockProvider{cfg: b.config},
		Runner:         b.runner,
		Registry:       state.Open(b.config.StatePath),
	}
}

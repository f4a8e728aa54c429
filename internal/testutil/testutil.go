// Package testutil provides common test utilities and helpers to reduce boilerplate in test files.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/trly/systemd-shim/internal/config"
	"github.com/trly/systemd-shim/internal/log"
)

// NewTestLogger creates a logger that writes to t.Logf for testing.
// This ensures test output is properly captured by the test framework.
func NewTestLogger(t testing.TB) log.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	handler := &testHandler{t: t, opts: opts}
	slogLogger := slog.New(handler)

	return log.NewSlogAdapter(slogLogger)
}

// Entry is a single record captured by RecordingLogger.
type Entry struct {
	Level string
	Msg   string
	Args  []any
}

// RecordingLogger captures log records so tests can assert on warnings.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

// Debug records a debug message.
func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }

// Info records an info message.
func (l *RecordingLogger) Info(msg string, args ...any) { l.record("info", msg, args) }

// Warn records a warning message.
func (l *RecordingLogger) Warn(msg string, args ...any) { l.record("warn", msg, args) }

// Error records an error message.
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// Entries returns a copy of everything recorded so far.
func (l *RecordingLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Messages returns the rendered messages recorded at level, args included.
func (l *RecordingLogger) Messages(level string) []string {
	var out []string
	for _, e := range l.Entries() {
		if e.Level != level {
			continue
		}
		out = append(out, strings.TrimSpace(e.Msg+" "+fmt.Sprintln(e.Args...)))
	}
	return out
}

// Contains reports whether a record at level contains substr in its message or args.
func (l *RecordingLogger) Contains(level, substr string) bool {
	for _, m := range l.Messages(level) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// ConfigOption allows customization of test config settings.
type ConfigOption func(*config.Settings)

// WithVerbose sets verbose logging.
func WithVerbose(verbose bool) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.Verbose = verbose
	}
}

// WithStatePath sets a custom registry file.
func WithStatePath(path string) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.StatePath = path
	}
}

// NewTestConfig creates a config provider whose host paths all live under
// a per-test temporary directory.
func NewTestConfig(t testing.TB, opts ...ConfigOption) config.Provider {
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.Verbose = true
	cfg.StatePath = filepath.Join(dir, "systemd-shim-state")
	cfg.ShutdownPidFile = filepath.Join(dir, "sendsigs.omit.d", "systemd-shim.pid")
	cfg.PowerStatePath = filepath.Join(dir, "power-state")
	cfg.PowerCommands = config.PowerCommands{
		Poweroff:  filepath.Join(dir, "poweroff"),
		Reboot:    filepath.Join(dir, "reboot"),
		Suspend:   filepath.Join(dir, "pm-suspend"),
		Hibernate: filepath.Join(dir, "pm-hibernate"),
	}
	cfg.NTP = config.NTP{
		NtpdateEnabled:   filepath.Join(dir, "if-up.d", "ntpdate"),
		NtpdateDisabled:  filepath.Join(dir, "if-up.d", "ntpdate.disabled"),
		NtpdateAvailable: filepath.Join(dir, "ntpdate-debian"),
		NtpdAvailable:    filepath.Join(dir, "ntpd"),
		ServiceCommand:   "service",
		UpdateRcdCommand: "update-rc.d",
	}
	cfg.ReleaseAgent = filepath.Join(dir, "cgm-release-agent.systemd")

	for _, opt := range opts {
		opt(cfg)
	}

	configProvider := config.NewDefaultConfigProvider()
	configProvider.SetConfig(cfg)
	return configProvider
}

// testHandler implements slog.Handler to write to testing.TB.
type testHandler struct {
	t    testing.TB
	opts *slog.HandlerOptions
}

func (h *testHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testHandler) Handle(_ context.Context, record slog.Record) error {
	h.t.Logf("[%s] %s", record.Level.String(), record.Message)
	return nil
}

func (h *testHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return &testHandler{t: h.t, opts: h.opts}
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return &testHandler{t: h.t, opts: h.opts}
}

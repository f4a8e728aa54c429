package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ExecuteCommandWithCapture runs cmd with args and returns everything it wrote,
// through cobra's writers as well as directly to os.Stdout and os.Stderr.
func ExecuteCommandWithCapture(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	var err error
	stdio := captureStdio(t, func() {
		err = cmd.Execute()
	})

	return stdio + buf.String(), err
}

// captureStdio redirects os.Stdout and os.Stderr into one pipe while fn runs.
func captureStdio(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	oldStdout, oldStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = w, w

	done := make(chan string, 1)
	go func() {
		var out bytes.Buffer
		_, _ = io.Copy(&out, r)
		_ = r.Close()
		done <- out.String()
	}()

	defer func() {
		os.Stdout, os.Stderr = oldStdout, oldStderr
	}()
	fn()

	_ = w.Close()
	return <-done
}

// AssertCommandOutput runs cmd and checks that it succeeds and prints each of
// expected. The output is returned for further checks.
func AssertCommandOutput(t *testing.T, cmd *cobra.Command, args []string, expected ...string) string {
	t.Helper()
	output, err := ExecuteCommandWithCapture(t, cmd, args)
	require.NoError(t, err)

	for _, want := range expected {
		assert.Contains(t, output, want, "output:\n%s", output)
	}
	return output
}

// AssertCommandFailure runs cmd and checks that it fails with an error
// mentioning expectedError.
func AssertCommandFailure(t *testing.T, cmd *cobra.Command, args []string, expectedError string) error {
	t.Helper()
	_, err := ExecuteCommandWithCapture(t, cmd, args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), expectedError)
	return err
}

// SetupCommandContext stores app in the command context the way the root
// command's PersistentPreRunE does.
func SetupCommandContext(cmd *cobra.Command, app *App) {
	cmd.SetContext(context.WithValue(context.Background(), appContextKey, app))
}

package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSCommandRunner(t *testing.T) {
	runner := NewOSCommandRunner()

	t.Run("CommandExists", func(t *testing.T) {
		assert.True(t, runner.CommandExists("echo"))
		assert.False(t, runner.CommandExists("nonexistentcommand123"))
		// second lookup is served from the cache
		assert.False(t, runner.CommandExists("nonexistentcommand123"))
	})

	t.Run("RequireCommand", func(t *testing.T) {
		assert.NoError(t, runner.RequireCommand("echo"))
		assert.Error(t, runner.RequireCommand("nonexistentcommand123"))
	})

	t.Run("RunCommand", func(t *testing.T) {
		output, err := runner.RunCommand(context.Background(), "echo", "test")
		assert.NoError(t, err)
		assert.Contains(t, output, "test")
	})

	t.Run("RunCommandWithOutput", func(t *testing.T) {
		stdout, stderr, err := runner.RunCommandWithOutput(context.Background(), "echo", "hello")
		assert.NoError(t, err)
		assert.Contains(t, stdout, "hello")
		assert.Empty(t, stderr)
	})

	t.Run("RunCommandInDir", func(t *testing.T) {
		tmpDir := t.TempDir()
		output, err := runner.RunCommandInDir(context.Background(), tmpDir, "pwd")
		assert.NoError(t, err)
		assert.Contains(t, output, tmpDir)
	})

	t.Run("RunCommand context deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := runner.RunCommand(ctx, "sleep", "5")
		assert.Error(t, err)
	})

	t.Run("GetExitCode", func(t *testing.T) {
		_, err := runner.RunCommand(context.Background(), "sh", "-c", "exit 42")
		require.Error(t, err)
		assert.Equal(t, 42, runner.GetExitCode(err))
		assert.Equal(t, 0, runner.GetExitCode(nil))
		assert.Equal(t, -1, runner.GetExitCode(errors.New("plain")))
	})

	t.Run("StartDetached", func(t *testing.T) {
		assert.NoError(t, runner.StartDetached("true"))
		assert.Error(t, runner.StartDetached("nonexistentcommand123"))
	})
}

func TestCommandRunnerInterface(_ *testing.T) {
	var _ CommandRunner = (*OSCommandRunner)(nil)
	var _ CommandRunner = (*MockCommandRunner)(nil)
}

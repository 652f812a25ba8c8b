package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bl791/chat-logger/internal/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, err := executeCommand(t, "stop", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "Stop a running chat logger daemon")
		assert.Contains(t, out, "timeout")
	})

	t.Run("not running", func(t *testing.T) {
		_, err := executeCommand(t, "stop", "--root", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not running")
	})

	t.Run("stale PID file is removed", func(t *testing.T) {
		root := t.TempDir()
		pidFile := filepath.Join(root, daemon.PIDFileName)
		require.NoError(t, os.WriteFile(pidFile, []byte("999999999"), 0644))

		out, err := executeCommand(t, "stop", "--root", root)
		require.NoError(t, err)
		assert.Contains(t, out, "stale PID file")
		assert.NoFileExists(t, pidFile)
	})
}

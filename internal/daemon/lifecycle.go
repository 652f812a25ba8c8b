package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bl791/chat-logger/internal/config"
)

// PIDFileName is written inside the chat log root while the daemon runs.
// The leading dot keeps it out of the session listing and the watcher.
const PIDFileName = ".chatlogger.pid"

// PIDFilePath returns where a daemon started with cfg records its PID
func PIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Chatlog.RootDir, PIDFileName)
}

// LifecycleManager owns the daemon PID file
type LifecycleManager struct {
	daemon  *Daemon
	pidFile string
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(d *Daemon) *LifecycleManager {
	return &LifecycleManager{
		daemon:  d,
		pidFile: PIDFilePath(d.config),
	}
}

// Start creates the chat log root and writes the PID file. It refuses to
// start while another live process holds the PID file.
func (l *LifecycleManager) Start() error {
	if err := os.MkdirAll(filepath.Dir(l.pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create chat log directory: %w", err)
	}

	if pid, err := ReadPID(l.pidFile); err == nil && pid != os.Getpid() && ProcessAlive(pid) {
		return fmt.Errorf("another daemon is already running with PID %d", pid)
	}

	if err := l.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	l.daemon.logger.Info().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("Lifecycle manager started")

	return nil
}

// Stop removes the PID file
func (l *LifecycleManager) Stop() error {
	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	l.daemon.logger.Info().Msg("Lifecycle manager stopped")

	return nil
}

func (l *LifecycleManager) writePIDFile() error {
	content := strconv.Itoa(os.Getpid())
	return os.WriteFile(l.pidFile, []byte(content), 0644)
}

// PIDFile returns the PID file path
func (l *LifecycleManager) PIDFile() string {
	return l.pidFile
}

// GetUptime returns the daemon uptime
func (l *LifecycleManager) GetUptime() time.Duration {
	return l.daemon.Status().Uptime
}

// GetPID returns the daemon PID from the PID file
func (l *LifecycleManager) GetPID() (int, error) {
	return ReadPID(l.pidFile)
}

// IsRunning checks if the process named by the PID file is alive
func (l *LifecycleManager) IsRunning() bool {
	pid, err := l.GetPID()
	if err != nil {
		return false
	}
	return ProcessAlive(pid)
}

// ReadPID parses a PID file
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}

	return pid, nil
}

// ProcessAlive reports whether pid names a live process
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so probe with signal 0.
	return process.Signal(syscall.Signal(0)) == nil
}

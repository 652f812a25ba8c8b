package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateLog struct {
	mu      sync.Mutex
	updates []Update
}

func (l *updateLog) record(u Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
	return nil
}

func (l *updateLog) last() (Update, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.updates) == 0 {
		return Update{}, false
	}
	return l.updates[len(l.updates)-1], true
}

func (l *updateLog) find(match func(Update) bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.updates {
		if match(u) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, rootDir string) *updateLog {
	t.Helper()

	log := &updateLog{}
	w, err := New(Config{
		RootDir:            rootDir,
		StabilityThreshold: 30 * time.Millisecond,
		OnUpdate:           log.record,
		Logger:             zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	return log
}

func newManager(t *testing.T, rootDir string) *session.SessionManager {
	t.Helper()

	sm, err := session.New(session.Config{RootDir: rootDir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return sm
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestWatcher_StartCreatesRoot(t *testing.T) {
	rootDir := filepath.Join(t.TempDir(), "chatlogs")
	startWatcher(t, rootDir)

	info, err := os.Stat(rootDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWatcher_ReportsNewDestinationAndUpdates(t *testing.T) {
	rootDir := t.TempDir()
	log := startWatcher(t, rootDir)
	sm := newManager(t, rootDir)
	ctx := context.Background()

	sm.HandleConnectionEstablished(ctx, "play.example.com")
	sm.HandleMessageReceived(ctx, session.Message{Text: "hello", SenderName: "Alice"})

	assert.Eventually(t, func() bool {
		return log.find(func(u Update) bool {
			return u.Destination == "play.example.com" && u.Document != nil && u.Document.MessageCount == 1
		})
	}, 2*time.Second, 10*time.Millisecond)

	sm.HandleMessageReceived(ctx, session.Message{Text: "again"})

	assert.Eventually(t, func() bool {
		u, ok := log.last()
		return ok && u.Document != nil && u.Document.MessageCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	u, _ := log.last()
	assert.Equal(t, "again", u.Document.Messages[1].Text)
	assert.False(t, u.Removed)
}

func TestWatcher_ExistingDestination(t *testing.T) {
	rootDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootDir, "world"), 0755))

	log := startWatcher(t, rootDir)
	sm := newManager(t, rootDir)
	ctx := context.Background()

	sm.HandleConnectionEstablished(ctx, "world")
	sm.HandleMessageReceived(ctx, session.Message{Text: "hi"})

	assert.Eventually(t, func() bool {
		u, ok := log.last()
		return ok && u.Destination == "world" && u.Document != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	rootDir := t.TempDir()
	log := startWatcher(t, rootDir)
	sm := newManager(t, rootDir)
	ctx := context.Background()

	sm.HandleConnectionEstablished(ctx, "world")
	sm.HandleMessageReceived(ctx, session.Message{Text: "hi"})
	require.NoError(t, sm.Close())

	var path string
	require.Eventually(t, func() bool {
		u, ok := log.last()
		path = u.Path
		return ok && u.Document != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		u, ok := log.last()
		return ok && u.Removed && u.Path == path && u.Document == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	rootDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootDir, "world"), 0755))
	log := startWatcher(t, rootDir)

	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "world", "notes.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "world", ".session_x.json.tmp"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "README"), []byte("hi"), 0644))

	time.Sleep(150 * time.Millisecond)
	_, ok := log.last()
	assert.False(t, ok)
}

func TestWatcher_SkipsInvalidDocuments(t *testing.T) {
	rootDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootDir, "world"), 0755))
	log := startWatcher(t, rootDir)

	name := session.SessionFileName(time.Now(), "deadbeef")
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "world", name), []byte(`{"server":`), 0644))

	time.Sleep(150 * time.Millisecond)
	_, ok := log.last()
	assert.False(t, ok)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Config{RootDir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	assert.NoError(t, w.Stop())
	assert.NotPanics(t, func() { _ = w.Stop() })
}

package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestIndex(t *testing.T) (*Index, string) {
	t.Helper()

	root := t.TempDir()
	x, err := Open(Config{RootDir: root, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })

	return x, root
}

func writeSessionDoc(t *testing.T, root, dest, id string, startedAt time.Time, entries ...session.ChatEntry) string {
	t.Helper()

	if entries == nil {
		entries = []session.ChatEntry{}
	}
	doc := &session.Document{
		Server:       dest,
		SessionID:    id,
		SessionStart: startedAt.Format("2006-01-02 15:04:05"),
		LastUpdated:  startedAt.Format("2006-01-02 15:04:05"),
		MessageCount: len(entries),
		Messages:     entries,
	}
	data, err := session.EncodeDocument(doc, true)
	require.NoError(t, err)

	dir := filepath.Join(root, session.Sanitize(dest))
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, session.SessionFileName(startedAt, id))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func entry(at time.Time, sender, text string) session.ChatEntry {
	return session.ChatEntry{
		Timestamp:   at.Format("2006-01-02 15:04:05"),
		EpochMillis: at.UnixMilli(),
		SenderID:    "id-" + sender,
		SenderName:  sender,
		Text:        text,
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_CreatesDatabaseInRoot(t *testing.T) {
	_, root := createTestIndex(t)
	assert.FileExists(t, filepath.Join(root, DefaultDBName))
}

func TestSyncAndSearch(t *testing.T) {
	x, root := createTestIndex(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)

	writeSessionDoc(t, root, "play.example.net", "aaaa0001", base,
		entry(base, "Steve", "hello world"),
		entry(base.Add(time.Second), "Alex", "Hello again"),
	)
	writeSessionDoc(t, root, "My World", "aaaa0002", base.Add(time.Hour),
		entry(base.Add(time.Hour), "Steve", "100% sure"),
	)

	stats, err := x.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 0, stats.Failed)

	status, err := x.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.Files)
	assert.Equal(t, 3, status.Messages)
	assert.NotNil(t, status.LastSyncTime)

	t.Run("case insensitive, newest first", func(t *testing.T) {
		hits, err := x.Search(ctx, "HELLO", SearchOptions{})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "Hello again", hits[0].Text)
		assert.Equal(t, "hello world", hits[1].Text)
		assert.Equal(t, "play.example.net", hits[0].Destination)
		assert.Equal(t, "aaaa0001", hits[0].SessionID)
		assert.FileExists(t, hits[0].FilePath)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		hits, err := x.Search(ctx, "%", SearchOptions{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "100% sure", hits[0].Text)
	})

	t.Run("destination filter uses sanitized name", func(t *testing.T) {
		hits, err := x.Search(ctx, "sure", SearchOptions{Destination: "My World"})
		require.NoError(t, err)
		assert.Len(t, hits, 1)

		hits, err = x.Search(ctx, "sure", SearchOptions{Destination: "play.example.net"})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("sender filter", func(t *testing.T) {
		hits, err := x.Search(ctx, "hello", SearchOptions{Sender: "alex"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Alex", hits[0].SenderName)
	})

	t.Run("limit", func(t *testing.T) {
		hits, err := x.Search(ctx, "e", SearchOptions{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("empty query", func(t *testing.T) {
		hits, err := x.Search(ctx, "  ", SearchOptions{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSync_SkipsUnchangedAndReindexesChanged(t *testing.T) {
	x, root := createTestIndex(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)

	path := writeSessionDoc(t, root, "srv", "bbbb0001", base, entry(base, "Steve", "one"))

	stats, err := x.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)

	stats, err = x.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped)

	writeSessionDoc(t, root, "srv", "bbbb0001", base,
		entry(base, "Steve", "one"),
		entry(base.Add(time.Second), "Steve", "two"),
	)
	indexed, err := x.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, indexed)

	status, err := x.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.Files)
	assert.Equal(t, 2, status.Messages)
}

func TestSync_PrunesDeletedFiles(t *testing.T) {
	x, root := createTestIndex(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)

	keep := writeSessionDoc(t, root, "srv", "cccc0001", base, entry(base, "Steve", "keep"))
	gone := writeSessionDoc(t, root, "srv", "cccc0002", base.Add(time.Minute), entry(base, "Steve", "gone"))

	_, err := x.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))
	stats, err := x.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pruned)

	hits, err := x.Search(ctx, "gone", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = x.Search(ctx, "keep", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, keep, hits[0].FilePath)
}

func TestSync_CountsInvalidDocuments(t *testing.T) {
	x, root := createTestIndex(t)
	ctx := context.Background()

	dir := filepath.Join(root, "srv")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session_2026-05-01_12-00-00_dddd0001.json"), []byte(`{"server":""}`), 0644))

	stats, err := x.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Indexed)
}

func TestRemove(t *testing.T) {
	x, root := createTestIndex(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)

	path := writeSessionDoc(t, root, "srv", "eeee0001", base, entry(base, "Steve", "bye"))
	_, err := x.IndexFile(ctx, path)
	require.NoError(t, err)

	require.NoError(t, x.Remove(ctx, path))

	status, err := x.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Files)
	assert.Equal(t, 0, status.Messages)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now \\o/`, escapeLike(`50% off_now \o/`))
}

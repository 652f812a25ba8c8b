// Package index keeps a SQLite search index over session documents.
//
// The index is a cache: every row can be rebuilt from the files under the
// chat log root, and Sync reconciles it with what is on disk.
package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bl791/chat-logger/internal/observability"
	"github.com/bl791/chat-logger/internal/tracing"
	"github.com/bl791/chat-logger/pkg/session"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultDBName is created inside the chat log root when no path is given.
const DefaultDBName = ".chatlog-index.db"

const defaultSearchLimit = 50

// Config holds index settings
type Config struct {
	RootDir string
	DBPath  string
	Logger  zerolog.Logger
}

// SearchOptions narrows a search. Zero values mean no restriction.
type SearchOptions struct {
	Limit       int
	Destination string
	Sender      string
}

// Hit is one matching message
type Hit struct {
	Destination string `json:"destination"`
	SessionID   string `json:"sessionId"`
	FilePath    string `json:"filePath"`
	Timestamp   string `json:"timestamp"`
	EpochMillis int64  `json:"epochMillis"`
	SenderID    string `json:"senderUuid"`
	SenderName  string `json:"senderName"`
	Text        string `json:"message"`
}

// SyncStats summarizes one Sync pass
type SyncStats struct {
	Indexed int
	Skipped int
	Pruned  int
	Failed  int
}

// Status describes the index contents
type Status struct {
	Files        int        `json:"files"`
	Messages     int        `json:"messages"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
}

// Index is a message search index backed by SQLite. It is safe for
// concurrent use.
type Index struct {
	db      *sql.DB
	rootDir string
	logger  zerolog.Logger

	mu       sync.Mutex
	lastSync *time.Time
}

// Open opens or creates the index database
func Open(cfg Config) (*Index, error) {
	observability.EnsureRegistered()

	if cfg.RootDir == "" {
		return nil, errors.New("chat log root is required")
	}

	rootDir, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chat log directory: %w", err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(rootDir, DefaultDBName)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	x := &Index{
		db:      db,
		rootDir: rootDir,
		logger:  cfg.Logger.With().Str("component", "index").Logger(),
	}

	if err := x.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	x.logger.Debug().Str("db", dbPath).Msg("Message index opened")
	return x, nil
}

func (x *Index) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			destination TEXT NOT NULL,
			session_id TEXT NOT NULL,
			server TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			indexed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_files_destination ON files(destination);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			epoch_millis INTEGER NOT NULL,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			text TEXT NOT NULL,
			FOREIGN KEY (file_id) REFERENCES files(id)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_file ON messages(file_id);
		CREATE INDEX IF NOT EXISTS idx_messages_epoch ON messages(epoch_millis);
	`

	_, err := x.db.Exec(schema)
	return err
}

// Sync indexes new and changed session files under the root and drops rows
// for files that no longer exist. A file that fails to parse is counted and
// skipped.
func (x *Index) Sync(ctx context.Context) (SyncStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(ctx, "chatlogger.index", "index.sync")
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, x.logger)
	start := time.Now()

	var stats SyncStats

	files, err := session.ListSessions(x.rootDir, "")
	if err != nil {
		tracing.RecordError(span, err)
		return stats, err
	}

	present := make(map[string]bool, len(files))
	for _, f := range files {
		rel := x.relPath(f.Path)
		present[rel] = true

		indexed, err := x.IndexFile(ctx, f.Path)
		if err != nil {
			logger.Warn().Err(err).Str("file", rel).Msg("Failed to index session file")
			stats.Failed++
			continue
		}
		if indexed {
			stats.Indexed++
		} else {
			stats.Skipped++
		}
	}

	pruned, err := x.pruneMissing(ctx, present)
	if err != nil {
		tracing.RecordError(span, err)
		return stats, fmt.Errorf("failed to prune index: %w", err)
	}
	stats.Pruned = pruned

	now := time.Now()
	x.mu.Lock()
	x.lastSync = &now
	x.mu.Unlock()

	span.SetAttributes(
		attribute.Int("index.indexed", stats.Indexed),
		attribute.Int("index.pruned", stats.Pruned),
	)

	logger.Info().
		Int("files_indexed", stats.Indexed).
		Int("files_skipped", stats.Skipped).
		Int("files_pruned", stats.Pruned).
		Int("files_failed", stats.Failed).
		Dur("duration", time.Since(start)).
		Msg("Index sync completed")

	x.publishCount()
	return stats, nil
}

// IndexFile (re)indexes one session document. It reports false when the
// file content is unchanged since it was last indexed.
func (x *Index) IndexFile(ctx context.Context, path string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read session file: %w", err)
	}

	hash := sha256.Sum256(content)
	contentHash := hex.EncodeToString(hash[:])
	rel := x.relPath(path)

	var existingHash string
	err = x.db.QueryRowContext(ctx, "SELECT content_hash FROM files WHERE path = ?", rel).Scan(&existingHash)
	if err == nil && existingHash == contentHash {
		return false, nil
	}

	doc, err := session.ParseDocument(content)
	if err != nil {
		return false, err
	}

	_, sessionID, ok := session.ParseSessionFileName(filepath.Base(path))
	if !ok {
		sessionID = doc.SessionID
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := deleteFile(ctx, tx, rel); err != nil {
		return false, err
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO files (path, destination, session_id, server, content_hash, indexed_at) VALUES (?, ?, ?, ?, ?, ?)",
		rel, filepath.Base(filepath.Dir(path)), sessionID, doc.Server, contentHash, time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}
	fileID, err := result.LastInsertId()
	if err != nil {
		return false, err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (file_id, seq, timestamp, epoch_millis, sender_id, sender_name, text) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for i, entry := range doc.Messages {
		if _, err := stmt.ExecContext(ctx, fileID, i, entry.Timestamp, entry.EpochMillis,
			entry.SenderID, entry.SenderName, entry.Text); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	x.logger.Debug().Str("file", rel).Int("messages", len(doc.Messages)).Msg("Session file indexed")
	return true, nil
}

// Remove drops a session file from the index
func (x *Index) Remove(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteFile(ctx, tx, x.relPath(path)); err != nil {
		return err
	}
	return tx.Commit()
}

// Search returns messages whose text contains query, case-insensitively for
// ASCII, newest first.
func (x *Index) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(ctx, "chatlogger.index", "index.search",
		attribute.String("query", query),
	)
	defer span.End()

	start := time.Now()
	defer func() { observability.RecordIndexSearch(time.Since(start)) }()

	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		where = []string{`m.text LIKE ? ESCAPE '\'`}
		args  = []interface{}{"%" + escapeLike(query) + "%"}
	)
	if opts.Destination != "" {
		where = append(where, "f.destination = ?")
		args = append(args, session.Sanitize(opts.Destination))
	}
	if opts.Sender != "" {
		where = append(where, "(m.sender_name = ? COLLATE NOCASE OR m.sender_id = ?)")
		args = append(args, opts.Sender, opts.Sender)
	}
	args = append(args, limit)

	q := `
		SELECT f.destination, f.session_id, f.path, m.timestamp, m.epoch_millis,
		       m.sender_id, m.sender_name, m.text
		FROM messages m
		JOIN files f ON f.id = m.file_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY m.epoch_millis DESC, m.id DESC
		LIMIT ?`

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		var rel string
		if err := rows.Scan(&h.Destination, &h.SessionID, &rel, &h.Timestamp, &h.EpochMillis,
			&h.SenderID, &h.SenderName, &h.Text); err != nil {
			return nil, err
		}
		h.FilePath = filepath.Join(x.rootDir, rel)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("index.hits", len(hits)))
	return hits, nil
}

// Status returns file and message counts
func (x *Index) Status() (Status, error) {
	var status Status

	if err := x.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&status.Files); err != nil {
		return status, err
	}
	if err := x.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&status.Messages); err != nil {
		return status, err
	}

	x.mu.Lock()
	status.LastSyncTime = x.lastSync
	x.mu.Unlock()

	return status, nil
}

// Close closes the database
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) pruneMissing(ctx context.Context, present map[string]bool) (int, error) {
	rows, err := x.db.QueryContext(ctx, "SELECT path FROM files")
	if err != nil {
		return 0, err
	}

	var toDelete []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, err
		}
		if !present[path] {
			toDelete = append(toDelete, path)
		}
	}
	rows.Close()

	for _, path := range toDelete {
		if err := x.Remove(ctx, filepath.Join(x.rootDir, path)); err != nil {
			return 0, err
		}
	}

	return len(toDelete), nil
}

func (x *Index) publishCount() {
	if status, err := x.Status(); err == nil {
		observability.SetIndexedMessages(status.Messages)
	}
}

// relPath keys files by their path under the root so the index survives the
// root being moved.
func (x *Index) relPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(x.rootDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func deleteFile(ctx context.Context, tx *sql.Tx, rel string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE file_id IN (SELECT id FROM files WHERE path = ?)", rel); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", rel)
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

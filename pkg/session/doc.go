// Package session captures chat messages into per-destination session files.
//
// Invariants:
// - At most one session is active at a time.
// - Every accepted message is flushed before the handler returns; the session
//   file on disk is always a complete JSON document.
// - SessionManager is not safe for concurrent use. Events must be delivered
//   serially (see events.Dispatcher).
//
// Usage:
//
//	mgr, _ := session.New(session.Config{RootDir: "chatlogs", Logger: log.Logger})
//	mgr.HandleConnectionEstablished(ctx, "play.example.com")
//	mgr.HandleMessageReceived(ctx, session.Message{Text: "hello", SenderName: "Alice"})
//	mgr.HandleConnectionLost(ctx)
package session

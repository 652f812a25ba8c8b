package session

import "time"

// UnknownSender is recorded when the host could not resolve sender identity.
const UnknownSender = "unknown"

const (
	logTimeFormat  = "2006-01-02 15:04:05"
	fileTimeFormat = "2006-01-02_15-04-05"
)

// Message is a chat message as delivered by the host. Empty sender fields
// mean the host could not resolve them.
type Message struct {
	Text       string
	SenderID   string
	SenderName string
}

// ChatEntry is one logged message. Timestamps are taken at receipt.
type ChatEntry struct {
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	EpochMillis int64  `json:"epochMillis" yaml:"epochMillis"`
	SenderID    string `json:"senderUuid" yaml:"senderUuid"`
	SenderName  string `json:"senderName" yaml:"senderName"`
	Text        string `json:"message" yaml:"message"`
}

func newChatEntry(receivedAt time.Time, msg Message) ChatEntry {
	return ChatEntry{
		Timestamp:   receivedAt.Format(logTimeFormat),
		EpochMillis: receivedAt.UnixMilli(),
		SenderID:    orUnknown(msg.SenderID),
		SenderName:  orUnknown(msg.SenderName),
		Text:        msg.Text,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownSender
	}
	return s
}

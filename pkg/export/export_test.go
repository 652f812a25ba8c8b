package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testDocument() *session.Document {
	return &session.Document{
		Server:       "play.example.net:25565",
		SessionID:    "1a2b3c4d",
		SessionStart: "2026-05-01 12:00:00",
		LastUpdated:  "2026-05-01 12:05:00",
		MessageCount: 2,
		Messages: []session.ChatEntry{
			{
				Timestamp:   "2026-05-01 12:00:01",
				EpochMillis: 1777636801000,
				SenderID:    "u-1",
				SenderName:  "Steve",
				Text:        "hello *world*",
			},
			{
				Timestamp:   "2026-05-01 12:00:02",
				EpochMillis: 1777636802000,
				SenderID:    session.UnknownSender,
				SenderName:  session.UnknownSender,
				Text:        "gg",
			},
		},
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"json", "json"},
		{"jsonl", "jsonl"},
		{"yaml", "yaml"},
		{"md", "md"},
		{"markdown", "md"},
		{"TEXT", "txt"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := NewExporter(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, exp.Extension())
		})
	}

	_, err := NewExporter("pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
	assert.Contains(t, err.Error(), "jsonl")
}

func TestJSONExporter_MatchesDocumentFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(testDocument(), &buf))

	require.NoError(t, session.ValidateDocument(buf.Bytes()))
	assert.Contains(t, buf.String(), `"senderUuid": "u-1"`)
}

func TestJSONLExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLExporter{}).Export(testDocument(), &buf))

	scanner := bufio.NewScanner(&buf)
	var lines []session.ChatEntry
	for scanner.Scan() {
		var entry session.ChatEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "Steve", lines[0].SenderName)
	assert.Equal(t, "gg", lines[1].Text)
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLExporter{}).Export(testDocument(), &buf))

	assert.Contains(t, buf.String(), "sessionId: 1a2b3c4d")
	assert.Contains(t, buf.String(), "senderUuid: u-1")

	var decoded session.Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *testDocument(), decoded)
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(testDocument(), &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# play.example.net:25565\n"))
	assert.Contains(t, out, "**Messages:** 2")
	assert.Contains(t, out, "**Steve:** hello \\*world\\*")
	assert.Contains(t, out, "`2026-05-01 12:00:02`")
}

func TestMarkdownExporter_EmptySession(t *testing.T) {
	doc := testDocument()
	doc.Messages = []session.ChatEntry{}
	doc.MessageCount = 0

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(doc, &buf))
	assert.NotContains(t, buf.String(), "---")
}

func TestTextExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextExporter{}).Export(testDocument(), &buf))

	out := buf.String()
	assert.Contains(t, out, "play.example.net:25565")
	assert.Contains(t, out, "2 messages")
	assert.Contains(t, out, "Steve:")
	assert.Contains(t, out, "hello *world*")
	assert.Contains(t, out, "[2026-05-01 12:00:02]")
}

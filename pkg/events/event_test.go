package events

import (
	"errors"
	"strings"
	"testing"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDestination(t *testing.T) {
	tests := []struct {
		name   string
		server string
		local  bool
		world  string
		want   string
	}{
		{"remote server", "play.example.com", false, "", "play.example.com"},
		{"remote trims", "  play.example.com ", false, "", "play.example.com"},
		{"remote empty", "", false, "", ""},
		{"remote ignores world", "mc.example.net", false, "World", "mc.example.net"},
		{"local world", "", true, "My World", "My World"},
		{"local unnamed", "", true, "  ", "singleplayer"},
		{"local ignores server", "play.example.com", true, "", "singleplayer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDestination(tt.server, tt.local, tt.world, "singleplayer"))
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("connection established", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"connection_established","server":"play.example.com"}`))
		require.NoError(t, err)
		assert.Equal(t, ConnectionEstablished, ev.Type)
		assert.Equal(t, "play.example.com", ev.Server)
	})

	t.Run("local world", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"connection_established","local":true,"world":"My World"}`))
		require.NoError(t, err)
		assert.True(t, ev.Local)
		assert.Equal(t, "My World", ev.Destination("singleplayer"))
	})

	t.Run("message", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type":"message_received","text":"hello","senderId":"abc-123","senderName":"Alice"}`))
		require.NoError(t, err)
		assert.Equal(t, session.Message{Text: "hello", SenderID: "abc-123", SenderName: "Alice"}, ev.Message())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"player_joined"}`))
		assert.ErrorIs(t, err, ErrUnknownEventType)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := Decode([]byte(`{"text":"hi"}`))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Decode([]byte(`hello`))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func TestEventMessage_TrimsSender(t *testing.T) {
	ev := Event{Type: MessageReceived, Text: "  spaced  ", SenderID: "  ", SenderName: " Bob "}
	msg := ev.Message()

	assert.Equal(t, "  spaced  ", msg.Text)
	assert.Empty(t, msg.SenderID)
	assert.Equal(t, "Bob", msg.SenderName)
}

func TestDecodeStream(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"connection_established","server":"a.example.com"}`,
		``,
		`{"type":"message_received","text":"one"}`,
		`   `,
		`{"type":"connection_lost"}`,
	}, "\n")

	var got []Kind
	n, err := DecodeStream(strings.NewReader(input), func(ev Event) error {
		got = append(got, ev.Type)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []Kind{ConnectionEstablished, MessageReceived, ConnectionLost}, got)
}

func TestDecodeStream_StopsAtBadLine(t *testing.T) {
	input := "{\"type\":\"connection_lost\"}\n{\"type\":\"bogus\"}\n{\"type\":\"connection_lost\"}\n"

	n, err := DecodeStream(strings.NewReader(input), func(Event) error { return nil })

	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, ErrUnknownEventType)
	assert.Contains(t, err.Error(), "line 2")
}

func TestDecodeStream_CallbackError(t *testing.T) {
	boom := errors.New("boom")

	n, err := DecodeStream(strings.NewReader(`{"type":"connection_lost"}`), func(Event) error { return boom })

	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, boom)
}

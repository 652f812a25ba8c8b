package gateway

import (
	"testing"
	"time"

	"github.com/bl791/chat-logger/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRegistry(t *testing.T) {
	registry := NewClientRegistry()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }

	old := now.Add(-10 * time.Minute)
	registry.Add(&Client{ID: "b", ConnectedAt: now, LastActivity: now})
	registry.Add(&Client{ID: "a", ConnectedAt: old, LastActivity: old, IPAddress: "127.0.0.1:1"})
	assert.Equal(t, 2, registry.Count())

	infos := registry.Snapshot()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ID)
	assert.True(t, infos[0].Idle)
	assert.False(t, infos[1].Idle)

	registry.RecordEvent("a", events.ConnectionEstablished, "play.example.com")
	registry.RecordEvent("a", events.MessageReceived, "")
	registry.RecordEvent("a", events.MessageReceived, "")
	registry.RecordEvent("missing", events.MessageReceived, "")

	a := registry.Snapshot()[0]
	assert.Equal(t, 3, a.Events)
	assert.Equal(t, 2, a.Messages)
	assert.True(t, a.InSession)
	assert.False(t, a.Idle)

	registry.RecordEvent("a", events.ConnectionLost, "")
	assert.False(t, registry.Snapshot()[0].InSession)

	// Clients without a socket are not returned for shutdown.
	assert.Empty(t, registry.Conns())

	registry.Remove("a")
	assert.Equal(t, 1, registry.Count())
	assert.Equal(t, "b", registry.Snapshot()[0].ID)
}

func TestClientRegistry_SessionFromEventDestination(t *testing.T) {
	registry := NewClientRegistry()
	registry.Add(&Client{ID: "a", ConnectedAt: time.Now(), LastActivity: time.Now()})

	// A connection that resolves to no destination opens nothing.
	registry.RecordEvent("a", events.ConnectionEstablished, "")
	assert.False(t, registry.Snapshot()[0].InSession)

	registry.RecordEvent("a", events.MessageReceived, "")
	assert.False(t, registry.Snapshot()[0].InSession)

	// A message carrying its destination rotates the session on its own.
	registry.RecordEvent("a", events.MessageReceived, "b.example.com")
	info := registry.Snapshot()[0]
	assert.True(t, info.InSession)
	assert.Equal(t, 2, info.Messages)
}

func TestClientRegistry_WindowEvents(t *testing.T) {
	registry := NewClientRegistry()
	limiter := NewClientRateLimiter(10)
	registry.Add(&Client{ID: "a", ConnectedAt: time.Now(), LastActivity: time.Now(), RateLimiter: limiter})
	registry.Add(&Client{ID: "b", ConnectedAt: time.Now().Add(time.Second), LastActivity: time.Now()})

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())

	infos := registry.Snapshot()
	require.Len(t, infos, 2)
	assert.Equal(t, 2, infos[0].WindowEvents)
	assert.Equal(t, 0, infos[1].WindowEvents)
}

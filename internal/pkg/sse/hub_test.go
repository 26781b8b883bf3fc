package sse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesOnlyMatchingKey(t *testing.T) {
	// Setup
	hub := NewHub(4)
	mine, cleanupMine := hub.Subscribe("emp-1")
	defer cleanupMine()
	other, cleanupOther := hub.Subscribe("emp-2")
	defer cleanupOther()

	// Act
	hub.Publish(Event{Key: "emp-1", Event: "sync", Data: map[string]int{"pending": 2}})

	// Assert
	require.Len(t, mine, 1)
	got := <-mine
	assert.Equal(t, "sync", got.Event)
	assert.Len(t, other, 0)
}

func TestHub_FullSubscriberDropsEvents(t *testing.T) {
	hub := NewHub(1)
	ch, cleanup := hub.Subscribe("emp-1")
	defer cleanup()

	hub.Publish(Event{Key: "emp-1", Event: "a"})
	hub.Publish(Event{Key: "emp-1", Event: "b"})

	assert.Equal(t, "a", (<-ch).Event)
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestHub_CleanupIsIdempotent(t *testing.T) {
	hub := NewHub(1)
	ch, cleanup := hub.Subscribe("emp-1")
	assert.Equal(t, 1, hub.SubscriberCount("emp-1"))

	cleanup()
	cleanup()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount("emp-1"))
}

func TestHub_CloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(1)
	ch, cleanup := hub.Subscribe("emp-1")

	hub.Close()
	cleanup()

	_, open := <-ch
	assert.False(t, open)
}

func TestEvent_WriteTo(t *testing.T) {
	var buf bytes.Buffer

	_, err := Event{Event: "network", Data: map[string]bool{"online": true}}.WriteTo(&buf)

	require.NoError(t, err)
	assert.Equal(t, "event: network\ndata: {\"online\":true}\n\n", buf.String())
}

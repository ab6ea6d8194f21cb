package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/internal/domain/entity"
)

func TestPGBridge_HandleSkipsOwnEvents(t *testing.T) {
	hub := NewHub(4)
	bridge := NewPGBridge(nil, "", hub)

	sub := hub.Subscribe(context.Background(), "order:o-1")
	defer sub.Close()

	ev := Event{Name: entity.EventOrderUpdate, Topic: "order:o-1", Data: json.RawMessage(`{"action":"accept"}`)}

	own, err := json.Marshal(relayedEvent{Origin: hub.Origin(), Event: ev})
	require.NoError(t, err)
	bridge.handle(string(own))

	select {
	case got := <-sub.Events():
		t.Fatalf("own event was re-delivered: %+v", got)
	default:
	}

	remote, err := json.Marshal(relayedEvent{Origin: "other-instance", Event: ev})
	require.NoError(t, err)
	bridge.handle(string(remote))

	got := receive(t, sub)
	assert.Equal(t, entity.EventOrderUpdate, got.Name)
	assert.JSONEq(t, `{"action":"accept"}`, string(got.Data))

	// malformed payloads are dropped
	bridge.handle("not json")
	select {
	case got := <-sub.Events():
		t.Fatalf("unexpected event: %+v", got)
	default:
	}
}

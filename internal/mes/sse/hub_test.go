package sse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(id, team string, allow func(string) bool) *Client {
	return &Client{ID: id, TeamID: team, Allow: allow, Events: make(chan Event, 4)}
}

func TestPublishOperationUpdateFiltersByTeamAndDepartment(t *testing.T) {
	hub := NewHub(nil)

	all := newClient("a", "team-1", nil)
	welding := newClient("b", "team-1", func(d string) bool { return d == "weld" })
	otherTeam := newClient("c", "team-2", nil)
	hub.Register(all)
	hub.Register(welding)
	hub.Register(otherTeam)
	require.Equal(t, 3, hub.ClientCount())

	hub.PublishOperationUpdate(OperationUpdate{TeamID: "team-1", DepartmentID: "paint", OperationID: "w1", Action: "start", Status: "in_progress"})

	require.Len(t, all.Events, 1)
	assert.Len(t, welding.Events, 0)
	assert.Len(t, otherTeam.Events, 0)

	event := <-all.Events
	assert.Equal(t, "operation_update", event.EventType)
	var payload OperationUpdate
	require.NoError(t, json.Unmarshal([]byte(event.Data), &payload))
	assert.Equal(t, "w1", payload.OperationID)
	assert.Equal(t, "in_progress", payload.Status)
}

func TestBroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{ID: "a", TeamID: "t", Events: make(chan Event, 1)}
	hub.Register(c)

	hub.Broadcast("t", "d", Event{EventType: "x"})
	hub.Broadcast("t", "d", Event{EventType: "y"})

	assert.Len(t, c.Events, 1)
	assert.Equal(t, "x", (<-c.Events).EventType)
}

func TestUnregisterClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	c := newClient("a", "t", nil)
	hub.Register(c)
	hub.Unregister("a")
	hub.Unregister("a")

	_, ok := <-c.Events
	assert.False(t, ok)
	assert.Zero(t, hub.ClientCount())
}

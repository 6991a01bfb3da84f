package websocket

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := &Client{hub: hub, id: "c1", send: make(chan *ServerMessage, sendBufferSize)}

	hub.register <- client
	waitForClientCount(t, hub, 1)

	hub.unregister <- client
	waitForClientCount(t, hub, 0)
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := &Client{hub: hub, id: "c1", send: make(chan *ServerMessage, sendBufferSize)}
	hub.register <- client
	waitForClientCount(t, hub, 1)

	hub.unregister <- client
	waitForClientCount(t, hub, 0)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("expected send channel to close promptly")
	}
}

func TestHubUnregisterUnknownClientIsNoop(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := &Client{hub: hub, id: "ghost", send: make(chan *ServerMessage, sendBufferSize)}
	hub.unregister <- client
	waitForClientCount(t, hub, 0)
}

func TestHubBroadcastWorkflowUpdatedReachesAllClients(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	c1 := &Client{hub: hub, id: "c1", send: make(chan *ServerMessage, sendBufferSize)}
	c2 := &Client{hub: hub, id: "c2", send: make(chan *ServerMessage, sendBufferSize)}
	hub.register <- c1
	hub.register <- c2
	waitForClientCount(t, hub, 2)

	hub.BroadcastWorkflowUpdated(&WorkflowDTO{ID: "wf-1", Name: "demo"})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != PushWorkflowUpdate || msg.Workflow.ID != "wf-1" {
				t.Fatalf("unexpected push: %+v", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for workflow-updated push")
		}
	}
}

func TestHubBroadcastDropsOnFullBuffer(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	// send channel with a capacity of one: the first push fills it, the second
	// must be dropped rather than block the hub's broadcast loop.
	client := &Client{hub: hub, id: "slow", send: make(chan *ServerMessage, 1)}
	hub.register <- client
	waitForClientCount(t, hub, 1)

	hub.BroadcastWorkflowUpdated(&WorkflowDTO{ID: "1"})
	hub.BroadcastWorkflowUpdated(&WorkflowDTO{ID: "2"})

	select {
	case <-client.send:
	case <-time.After(time.Second):
		t.Fatal("expected at least one delivered push")
	}
}

func waitForClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("expected client count %d, got %d", want, hub.ClientCount())
}

package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Size of the send channel buffer.
	sendBufferSize = 64
)

// Client is one websocket connection: its own read/write pumps, its own
// per-execution bus subscriptions (cancelled individually on unsubscribe or
// all at once on disconnect), and a handle back to the shared Server for
// dispatching commands.
type Client struct {
	hub  *Hub
	srv  *Server
	conn *websocket.Conn
	send chan *ServerMessage

	id     string
	userID string

	mu   sync.Mutex
	subs map[string]func() // executionID -> unsubscribe its bus subscription
}

func NewClient(id, userID string, hub *Hub, srv *Server, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		srv:    srv,
		conn:   conn,
		send:   make(chan *ServerMessage, sendBufferSize),
		id:     id,
		userID: userID,
		subs:   make(map[string]func()),
	}
}

// readPump pumps incoming frames from the websocket connection, decodes
// them into a ClientMessage, and dispatches each to handleCommand.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.stopAllSubscriptions()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		msg, err := decodeClientMessage(raw)
		if err != nil {
			c.send <- &ServerMessage{Type: "error", Error: "invalid message format"}
			continue
		}
		c.handleCommand(msg)
	}
}

// writePump pumps queued ServerMessages to the websocket connection and
// keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleCommand(msg *ClientMessage) {
	ctx := context.Background()

	switch msg.Type {
	case MsgStartExecution:
		execID, err := c.srv.StartExecution(ctx, msg.WorkflowID, msg.Input)
		if err != nil {
			c.send <- &ServerMessage{Type: "error", Error: err.Error()}
			return
		}
		c.watchExecution(execID, nil)

	case MsgInterrupt:
		c.srv.Interrupt(msg.ExecutionID)

	case MsgSubscribeExecution:
		c.watchExecution(msg.ExecutionID, msg.AfterTimestamp)

	case MsgSubmitApproval:
		if msg.ApprovalResponse == nil {
			c.send <- &ServerMessage{Type: "error", Error: "submit-approval requires a response"}
			return
		}
		c.srv.SubmitApproval(msg.ExecutionID, msg.NodeID, *msg.ApprovalResponse)

	case MsgSubmitEvolution:
		if msg.ApprovalResponse == nil {
			c.send <- &ServerMessage{Type: "error", Error: "submit-evolution requires a response"}
			return
		}
		c.srv.SubmitEvolution(msg.ExecutionID, msg.NodeID, *msg.ApprovalResponse)

	case MsgReplayExecution:
		execID, err := c.srv.ReplayExecution(ctx, msg.WorkflowID, msg.SourceExecutionID, msg.FromNodeID)
		if err != nil {
			c.send <- &ServerMessage{Type: "error", Error: err.Error()}
			return
		}
		c.watchExecution(execID, nil)

	case MsgSaveWorkflow:
		if msg.Workflow == nil {
			c.send <- &ServerMessage{Type: "error", Error: "save-workflow requires a workflow"}
			return
		}
		c.send <- c.srv.SaveWorkflow(ctx, msg.Workflow)

	default:
		c.send <- &ServerMessage{Type: "error", Error: "unknown message type: " + msg.Type}
	}
}

// watchExecution starts (or restarts) forwarding executionID's bus events
// to this client as "event" pushes. Subscribe itself replays any journaled
// event after afterTimestamp before forwarding new publishes, so there is
// no separate backlog-then-live-subscribe race to manage here. An execution
// with no journal on the bus but a persisted one in storage ran before a
// process restart: its journal is replayed from storage instead, with no
// live tail to follow. An id with neither journal falls through to a live
// subscription — the run may simply not have published anything yet.
func (c *Client) watchExecution(executionID string, afterTimestamp *time.Time) {
	if !c.srv.Bus.Exists(executionID) && c.replayedFromStorage(executionID, afterTimestamp) {
		return
	}

	c.mu.Lock()
	if existing, ok := c.subs[executionID]; ok {
		existing()
	}
	sub := c.srv.Bus.Subscribe(executionID, afterTimestamp)
	c.subs[executionID] = sub.Unsubscribe
	c.mu.Unlock()

	go func() {
		for ev := range sub.Events {
			c.send <- newEventPush(executionEventToDTO(ev))
		}
	}()
}

// replayedFromStorage pushes the persisted journal of a pre-restart
// execution to this client, honoring the same afterTimestamp filter a bus
// catch-up would apply. Returns false — having pushed nothing — when no
// persisted journal exists for the id, so the caller can treat it as live.
func (c *Client) replayedFromStorage(executionID string, afterTimestamp *time.Time) bool {
	execID, err := uuid.Parse(executionID)
	if err != nil {
		return false
	}
	events, err := c.srv.Storage.GetEvents(context.Background(), execID)
	if err != nil || len(events) == 0 {
		return false
	}
	for _, ev := range events {
		if afterTimestamp != nil && !ev.Timestamp().After(*afterTimestamp) {
			continue
		}
		if dto := domainEventToDTO(ev); dto != nil {
			c.send <- newEventPush(dto)
		}
	}
	return true
}

func (c *Client) stopAllSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsubscribe := range c.subs {
		unsubscribe()
	}
	c.subs = make(map[string]func())
}

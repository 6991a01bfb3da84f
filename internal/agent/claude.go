package agent

import (
	"context"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// ClaudeAdapter talks to a Claude-flavored agent network. The underlying
// transport is an OpenAI-compatible streaming chat client, generalized into
// the session-aware streaming contract that Adapter requires.
type ClaudeAdapter struct {
	client *openai.Client

	mu          sync.Mutex
	streams     map[string]context.CancelFunc
	outputs     map[string]StructuredOutput
	lastSession string
}

func NewClaudeAdapter(client *openai.Client) *ClaudeAdapter {
	return &ClaudeAdapter{
		client:  client,
		streams: make(map[string]context.CancelFunc),
		outputs: make(map[string]StructuredOutput),
	}
}

func (a *ClaudeAdapter) Execute(ctx context.Context, req Request) (<-chan Event, Handle) {
	streamCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	// An explicit SessionID on the request overrides the stored one; the
	// stored one continues the previous turn's conversation; a fresh
	// adapter mints a new session.
	sid := req.SessionID
	if sid == "" {
		sid = a.lastSession
	}
	sid = sessionIDOrNew(sid)
	a.lastSession = sid
	h := Handle{SessionID: sid, StreamID: newStreamID()}
	a.streams[h.StreamID] = cancel
	a.mu.Unlock()

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer a.forgetStream(h.StreamID)
		streamTurn(streamCtx, a.client, mapClaudeModel(req.Model), false, req, out, h, func(so StructuredOutput) {
			a.mu.Lock()
			a.outputs[h.StreamID] = so
			a.mu.Unlock()
		})
	}()

	return out, h
}

func (a *ClaudeAdapter) Interrupt(h Handle) {
	a.mu.Lock()
	cancel, ok := a.streams[h.StreamID]
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

func (a *ClaudeAdapter) StructuredOutput(h Handle) (StructuredOutput, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	so, ok := a.outputs[h.StreamID]
	return so, ok
}

func (a *ClaudeAdapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSession
}

func (a *ClaudeAdapter) forgetStream(streamID string) {
	a.mu.Lock()
	delete(a.streams, streamID)
	a.mu.Unlock()
}

// mapClaudeModel translates the schema's claude-agent model option into the
// concrete chat-completion model string the transport expects.
func mapClaudeModel(model string) string {
	switch model {
	case "opus":
		return "claude-opus"
	case "haiku":
		return "claude-haiku"
	default:
		return "claude-sonnet"
	}
}

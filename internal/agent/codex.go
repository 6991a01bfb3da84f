package agent

import (
	"context"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// CodexAdapter talks to a Codex-flavored agent network over the same
// OpenAI-compatible streaming transport as ClaudeAdapter, but additionally
// "strictifies" tool and output JSON schemas before sending them — the
// Codex family rejects schemas missing `additionalProperties: false` or
// with optional (non-required) properties, so every schema is normalized on
// the way out.
type CodexAdapter struct {
	client *openai.Client

	mu          sync.Mutex
	streams     map[string]context.CancelFunc
	outputs     map[string]StructuredOutput
	lastSession string
}

func NewCodexAdapter(client *openai.Client) *CodexAdapter {
	return &CodexAdapter{
		client:  client,
		streams: make(map[string]context.CancelFunc),
		outputs: make(map[string]StructuredOutput),
	}
}

func (a *CodexAdapter) Execute(ctx context.Context, req Request) (<-chan Event, Handle) {
	streamCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
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
		streamTurn(streamCtx, a.client, req.Model, true, req, out, h, func(so StructuredOutput) {
			a.mu.Lock()
			a.outputs[h.StreamID] = so
			a.mu.Unlock()
		})
	}()

	return out, h
}

func (a *CodexAdapter) Interrupt(h Handle) {
	a.mu.Lock()
	cancel, ok := a.streams[h.StreamID]
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

func (a *CodexAdapter) StructuredOutput(h Handle) (StructuredOutput, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	so, ok := a.outputs[h.StreamID]
	return so, ok
}

func (a *CodexAdapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSession
}

func (a *CodexAdapter) forgetStream(streamID string) {
	a.mu.Lock()
	delete(a.streams, streamID)
	a.mu.Unlock()
}

// Strictify rewrites a JSON-Schema-shaped map so every object's properties
// are all required and additionalProperties is false, recursing through
// properties, items, and the oneOf/anyOf/allOf combinators.
func Strictify(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = v
	}

	if props, ok := out["properties"].(map[string]any); ok {
		stricted := make(map[string]any, len(props))
		required := make([]string, 0, len(props))
		for name, propSchema := range props {
			if nested, ok := propSchema.(map[string]any); ok {
				stricted[name] = Strictify(nested)
			} else {
				stricted[name] = propSchema
			}
			required = append(required, name)
		}
		sort.Strings(required)
		out["properties"] = stricted
		out["required"] = required
		out["additionalProperties"] = false
	} else if out["type"] == "object" {
		out["additionalProperties"] = false
	}

	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = Strictify(items)
	}
	for _, combinator := range []string{"oneOf", "anyOf", "allOf"} {
		variants, ok := out[combinator].([]any)
		if !ok {
			continue
		}
		stricted := make([]any, len(variants))
		for i, v := range variants {
			if nested, ok := v.(map[string]any); ok {
				stricted[i] = Strictify(nested)
			} else {
				stricted[i] = v
			}
		}
		out[combinator] = stricted
	}
	return out
}

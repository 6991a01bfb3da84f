// Package agent provides the uniform streaming adapter over
// heterogeneous external agent services. Executors never branch on which
// concrete agent network backs a node — they drive an Adapter and consume
// domain.AgentEvent regardless of flavor.
package agent

import (
	"context"

	"github.com/smilemakc/agentflow/internal/domain"
)

// Request is one turn's worth of input to an agent.
type Request struct {
	SessionID    string // "" continues the adapter's stored session (a new one on a fresh adapter)
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTurns     int
	Tools        []ToolSpec

	// Output, when non-nil, constrains the turn's final response to the
	// given JSON schema.
	Output *OutputConfig
}

// OutputConfig asks for a schema-constrained (structured) response.
type OutputConfig struct {
	// Schema is the JSON Schema document as authored on the node. Invalid
	// JSON here fails the turn before anything is sent upstream.
	Schema string
	// FilePath, when set, is recorded on the resulting StructuredOutput so
	// the caller knows where the response was meant to land.
	FilePath string
}

// StructuredOutput is the parsed, schema-constrained response of one turn.
type StructuredOutput struct {
	Format   string // always "json"
	Content  string // raw JSON text as returned
	Parsed   any    // Content unmarshalled
	FilePath string
}

// ToolSpec describes one callable tool exposed to the agent, using a
// JSON-Schema-shaped Parameters map.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Handle identifies one in-flight streamed turn, returned by Execute so a
// caller can Interrupt it.
type Handle struct {
	SessionID string
	StreamID  string
}

// Adapter is implemented once per agent flavor (claude, codex). All methods
// must be safe to call concurrently: Interrupt races with the in-flight
// Execute by design.
type Adapter interface {
	// Execute starts a turn (continuing Request.SessionID when set, else the
	// adapter's stored session) and
	// streams domain.AgentEvent values on the returned channel until the
	// turn reaches a terminal event (complete/error) or ctx is cancelled.
	// The channel is always closed by the adapter.
	Execute(ctx context.Context, req Request) (<-chan Event, Handle)
	// Interrupt cancels the in-flight stream identified by h, if any is
	// still running. Safe to call after the stream has already finished.
	Interrupt(h Handle)
	// StructuredOutput returns the schema-constrained response of the turn
	// identified by h, if the turn requested one and completed successfully.
	StructuredOutput(h Handle) (StructuredOutput, bool)
	// SessionID returns the session identifier captured from the most
	// recent turn, or "" for a fresh adapter.
	SessionID() string
}

// Event pairs a domain.AgentEvent with the handle it belongs to, so a
// multiplexed consumer (the scheduler fans out many concurrent node
// executions) can tell streams apart if ever merged.
type Event struct {
	Handle Handle
	Event  domain.AgentEvent
}

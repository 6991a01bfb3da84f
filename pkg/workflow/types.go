// Package workflow is the public builder SDK for composing workflow
// definitions programmatically. A Definition marshals to exactly the JSON
// the HTTP create/update endpoints and the save-workflow socket message
// accept, so a caller can build one here and POST it without knowing the
// wire contract by heart. The server always re-validates and re-keys what
// it receives; the builder's own Build-time checks exist to fail fast on
// the caller's side, not to be trusted.
package workflow

// NodeDef is one node of a definition. ID is a client-local identifier
// used only to wire edges within the same definition — the server mints
// real identities on save.
type NodeDef struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
}

// EdgeDef connects two nodes by their client-local IDs. SourceHandle
// selects a branch of a condition ("true"/"false") or approval
// ("approved"/"rejected") source node.
type EdgeDef struct {
	ID           string         `json:"id"`
	From         string         `json:"from"`
	To           string         `json:"to"`
	Type         string         `json:"type"`
	Config       map[string]any `json:"config,omitempty"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
}

// TriggerDef declares a non-manual way to start the workflow: an "http"
// webhook or a "schedule" cron entry.
type TriggerDef struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// Definition is a complete, buildable workflow in wire shape.
type Definition struct {
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Description string       `json:"description,omitempty"`
	Nodes       []NodeDef    `json:"nodes"`
	Edges       []EdgeDef    `json:"edges"`
	Triggers    []TriggerDef `json:"triggers,omitempty"`
}

// Node type names accepted by the engine, re-exported so builder callers
// don't hardcode strings.
const (
	NodeInput       = "input"
	NodeOutput      = "output"
	NodeClaudeAgent = "claude-agent"
	NodeCodexAgent  = "codex-agent"
	NodeCondition   = "condition"
	NodeMerge       = "merge"
	NodeJavaScript  = "javascript"
	NodeBash        = "bash"
	NodeApproval    = "approval"
	NodeSelfReflect = "self-reflect"
)

// Edge type names.
const (
	EdgeDirect      = "direct"
	EdgeConditional = "conditional"
)

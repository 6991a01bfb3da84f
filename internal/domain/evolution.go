package domain

import "time"

// MutationKind enumerates the operations a self-reflect node may propose
// against the live workflow definition.
type MutationKind string

const (
	MutationUpdateNodeConfig      MutationKind = "update-node-config"
	MutationUpdatePrompt          MutationKind = "update-prompt"
	MutationUpdateModel           MutationKind = "update-model"
	MutationAddNode               MutationKind = "add-node"
	MutationRemoveNode            MutationKind = "remove-node"
	MutationAddEdge               MutationKind = "add-edge"
	MutationRemoveEdge            MutationKind = "remove-edge"
	MutationUpdateWorkflowSetting MutationKind = "update-workflow-setting"
)

// MutationOp is a single proposed change to a workflow definition. Only the
// fields relevant to Kind are read; the validator rejects an unknown Kind
// as INVALID_INPUT.
type MutationOp struct {
	Kind MutationKind

	// update-node-config / update-prompt / update-model / remove-node
	NodeID string

	// update-node-config
	Path  string
	Value any

	// update-model
	NewModel string

	// add-node
	NewNodeID string
	NodeType  NodeType
	NodeName  string
	Config    map[string]any
	Position  Position

	// add-edge / remove-edge
	EdgeID       string
	FromNodeID   string
	ToNodeID     string
	EdgeType     EdgeType
	SourceHandle string

	// add-node: optional auto-wiring to existing nodes
	ConnectFromNodeID string
	ConnectToNodeID   string

	// update-workflow-setting
	SettingKey   string
	SettingValue any
}

// EvolutionMode governs whether a self-reflect node's proposed evolution
// applies automatically, waits for human sign-off, or is surfaced for
// inspection only.
type EvolutionMode string

const (
	EvolutionModeDryRun    EvolutionMode = "dry-run"
	EvolutionModeSuggest   EvolutionMode = "suggest"
	EvolutionModeAutoApply EvolutionMode = "auto-apply"
)

// Evolution is a proposed batch of mutations emitted by a self-reflect node,
// along with the policy that governs whether it applies automatically or
// waits for human sign-off.
type Evolution struct {
	ID           string
	NodeID       string
	Mutations    []MutationOp
	Mode         EvolutionMode
	Scope        []string // e.g. "models", "prompts", "structure"
	MaxMutations int       // 0 means unbounded
	Rationale    string
	ProposedAt   time.Time
}

// EvolutionSnapshot is one before/after pair recorded in an execution's
// evolution history whenever an Evolution is applied.
type EvolutionSnapshot struct {
	EvolutionID string
	Before      map[string]any
	After       map[string]any
	AppliedAt   time.Time
}

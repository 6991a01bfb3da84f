package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smilemakc/agentflow/internal/agent"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

// SelfReflect drives a reflection agent over the run so far, asking it to
// propose a batch of workflow mutations as JSON, then hands the parsed
// proposal to in.Evolve for shadow-validation and (depending on AutoApply)
// either immediate application or a human approval gate.
type SelfReflect struct{}

func (SelfReflect) Validate(n domain.Node) error {
	if instructions, _ := n.Config()["instructions"].(string); instructions == "" {
		return fmt.Errorf("self-reflect node %q: instructions is required", n.Name())
	}
	return nil
}

func (SelfReflect) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	if in.Agent == nil {
		return node.Output{}, fmt.Errorf("self-reflect node %q: no reflection agent configured", in.Node.Name())
	}

	instructions, _ := in.Config["instructions"].(string)
	mode, _ := in.Config["mode"].(string)
	if mode == "" {
		mode = string(domain.EvolutionModeDryRun)
	}
	scope := toStringSlice(in.Config["scope"])
	includeTranscripts, _ := in.Config["includeTranscripts"].(bool)
	maxMutations, _ := in.Config["maxMutations"].(float64)

	var history string
	if includeTranscripts {
		for _, name := range in.Predecessors {
			if out, ok := in.PredecessorOutput(name); ok {
				history += fmt.Sprintf("\n--- %s ---\n%v\n", name, out)
			}
		}
	}

	prompt := in.Resolve(instructions) + history +
		"\n\nRespond with ONLY a JSON array of mutation operations, each shaped like " +
		`{"kind":"update-node-config","nodeId":"...","path":"...","value":...}` + ". No prose."

	stream, handle := in.Agent.Execute(ctx, agent.Request{
		UserPrompt: prompt,
		Model:      "default",
		Output:     &agent.OutputConfig{Schema: mutationListSchema},
	})
	defer in.Agent.Interrupt(handle)

	var raw string
	for ev := range stream {
		in.Emit(ev.Event)
		switch ev.Event.Kind {
		case domain.AgentEventComplete:
			if s, ok := ev.Event.Result.(string); ok {
				raw = s
			}
		case domain.AgentEventError:
			return node.Output{}, fmt.Errorf("self-reflect node %q: %s", in.Node.Name(), ev.Event.Err)
		}
	}
	if ctx.Err() != nil {
		return node.Output{}, ctx.Err()
	}

	// Prefer the schema-constrained response when the adapter produced one;
	// the raw assistant text is the fallback for adapters (or turns) that
	// ignored the output format.
	if so, ok := in.Agent.StructuredOutput(handle); ok {
		raw = so.Content
	}

	mutations, err := parseMutations(raw)
	if err != nil {
		return node.Output{}, fmt.Errorf("self-reflect node %q: unable to parse workflow evolution from agent output: %w", in.Node.Name(), err)
	}

	evo := domain.Evolution{
		ID:         in.Node.ID().String() + "-" + time.Now().UTC().Format(time.RFC3339Nano),
		NodeID:     in.Node.ID().String(),
		Mutations:  mutations,
		Mode:         domain.EvolutionMode(mode),
		Scope:        scope,
		MaxMutations: int(maxMutations),
		Rationale:    raw,
		ProposedAt:   time.Now(),
	}

	applied, approvalRequested, err := in.Evolve(ctx, evo)
	if err != nil {
		return node.Output{}, fmt.Errorf("self-reflect node %q: %w", in.Node.Name(), err)
	}

	return node.Output{Data: map[string]any{
		"applied":           applied,
		"approvalRequested": approvalRequested,
		"mutationCount":     len(mutations),
	}}, nil
}

// mutationListSchema constrains the reflection agent's response to a JSON
// array of mutation operations. Kept permissive on purpose — the evolution
// validator is the real gatekeeper; the schema only stops free-prose
// responses.
const mutationListSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "kind": {"type": "string"},
      "nodeId": {"type": "string"},
      "path": {"type": "string"},
      "value": {},
      "newModel": {"type": "string"},
      "newNodeId": {"type": "string"},
      "nodeType": {"type": "string"},
      "nodeName": {"type": "string"},
      "config": {"type": "object"},
      "edgeId": {"type": "string"},
      "fromNodeId": {"type": "string"},
      "toNodeId": {"type": "string"},
      "edgeType": {"type": "string"},
      "sourceHandle": {"type": "string"},
      "settingKey": {"type": "string"},
      "settingValue": {}
    },
    "required": ["kind"]
  }
}`

func toStringSlice(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// parseMutations decodes an agent's proposed JSON array of mutation
// operations into domain.MutationOp values, tolerating unknown/missing
// fields per kind (the evolution validator rejects anything invalid).
func parseMutations(raw string) ([]domain.MutationOp, error) {
	var decoded []struct {
		Kind         string         `json:"kind"`
		NodeID       string         `json:"nodeId"`
		Path         string         `json:"path"`
		Value        any            `json:"value"`
		NewModel     string         `json:"newModel"`
		NewNodeID    string         `json:"newNodeId"`
		NodeType     string         `json:"nodeType"`
		NodeName     string         `json:"nodeName"`
		Config       map[string]any `json:"config"`
		EdgeID       string         `json:"edgeId"`
		FromNodeID   string         `json:"fromNodeId"`
		ToNodeID     string         `json:"toNodeId"`
		EdgeType     string         `json:"edgeType"`
		SourceHandle string         `json:"sourceHandle"`
		SettingKey   string         `json:"settingKey"`
		SettingValue any            `json:"settingValue"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("proposal is not a JSON array of mutations: %w", err)
	}

	out := make([]domain.MutationOp, 0, len(decoded))
	for _, d := range decoded {
		out = append(out, domain.MutationOp{
			Kind:         domain.MutationKind(d.Kind),
			NodeID:       d.NodeID,
			Path:         d.Path,
			Value:        d.Value,
			NewModel:     d.NewModel,
			NewNodeID:    d.NewNodeID,
			NodeType:     domain.NodeType(d.NodeType),
			NodeName:     d.NodeName,
			Config:       d.Config,
			EdgeID:       d.EdgeID,
			FromNodeID:   d.FromNodeID,
			ToNodeID:     d.ToNodeID,
			EdgeType:     domain.EdgeType(d.EdgeType),
			SourceHandle: d.SourceHandle,
			SettingKey:   d.SettingKey,
			SettingValue: d.SettingValue,
		})
	}
	return out, nil
}

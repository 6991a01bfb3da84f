package executors

import (
	"context"
	"fmt"

	"github.com/smilemakc/agentflow/internal/agent"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

// AgentNode drives any agent.Adapter (claude or codex flavor) through one
// turn, emitting every streamed domain.AgentEvent via in.Emit and blocking
// until the stream reaches complete/error or ctx is cancelled. Both
// claude-agent and codex-agent register this same executor with different
// in.Agent adapters wired at startup.
type AgentNode struct{}

func (AgentNode) Validate(n domain.Node) error {
	cfg := n.Config()
	if _, ok := cfg["userQuery"].(string); !ok {
		return fmt.Errorf("agent node %q: userQuery is required", n.Name())
	}
	if _, ok := cfg["model"].(string); !ok {
		return fmt.Errorf("agent node %q: model is required", n.Name())
	}
	return nil
}

func (AgentNode) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	if in.Agent == nil {
		return node.Output{}, fmt.Errorf("agent node %q: no adapter configured", in.Node.Name())
	}

	model, _ := in.Config["model"].(string)
	systemPrompt, _ := in.Config["systemPrompt"].(string)
	userQuery, _ := in.Config["userQuery"].(string)
	sessionID, _ := in.Config["sessionId"].(string)
	maxTurns, _ := in.Config["maxTurns"].(float64)

	req := agent.Request{
		SessionID:    sessionID,
		Model:        model,
		SystemPrompt: in.Resolve(systemPrompt),
		UserPrompt:   in.Resolve(userQuery),
		MaxTurns:     int(maxTurns),
		Tools:        toolSpecs(in.Config),
	}
	if schema, _ := in.Config["outputSchema"].(string); schema != "" {
		filePath, _ := in.Config["outputFilePath"].(string)
		req.Output = &agent.OutputConfig{Schema: schema, FilePath: filePath}
	}

	stream, handle := in.Agent.Execute(ctx, req)
	defer in.Agent.Interrupt(handle)

	var final any
	for ev := range stream {
		in.Emit(ev.Event)
		switch ev.Event.Kind {
		case domain.AgentEventComplete:
			final = ev.Event.Result
		case domain.AgentEventError:
			return node.Output{}, fmt.Errorf("agent node %q: %s", in.Node.Name(), ev.Event.Err)
		}
	}
	if ctx.Err() != nil {
		return node.Output{}, ctx.Err()
	}

	data := map[string]any{"text": final, "sessionId": handle.SessionID}
	if so, ok := in.Agent.StructuredOutput(handle); ok {
		data["structured"] = so.Parsed
	}
	return node.Output{Data: data}, nil
}

func toolSpecs(cfg map[string]any) []agent.ToolSpec {
	raw, _ := cfg["toolSchema"].([]any)
	if len(raw) == 0 {
		return nil
	}
	specs := make([]agent.ToolSpec, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		desc, _ := m["description"].(string)
		params, _ := m["parameters"].(map[string]any)
		specs = append(specs, agent.ToolSpec{Name: name, Description: desc, Parameters: params})
	}
	return specs
}

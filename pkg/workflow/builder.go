package workflow

import (
	"fmt"
	"strings"
)

// Builder accumulates a Definition through a fluent chain. Nodes are
// addressed by their display name in Connect calls; client-local IDs are
// minted internally.
type Builder struct {
	def    Definition
	byName map[string]string // node name -> client-local id
	errs   []string
	nextID int
}

// New starts a builder for a named workflow version.
func New(name, version string) *Builder {
	return &Builder{
		def:    Definition{Name: name, Version: version},
		byName: make(map[string]string),
	}
}

func (b *Builder) Description(desc string) *Builder {
	b.def.Description = desc
	return b
}

// AddNode appends a node and registers its name for Connect. Adding two
// nodes with the same name is recorded as a build error rather than
// panicking mid-chain.
func (b *Builder) AddNode(nodeType, name string, config map[string]any) *Builder {
	if _, exists := b.byName[name]; exists {
		b.errs = append(b.errs, fmt.Sprintf("duplicate node name %q", name))
		return b
	}
	b.nextID++
	id := fmt.Sprintf("n%d", b.nextID)
	b.byName[name] = id
	b.def.Nodes = append(b.def.Nodes, NodeDef{ID: id, Type: nodeType, Name: name, Config: config})
	return b
}

// At positions the most recently added node on the canvas.
func (b *Builder) At(x, y float64) *Builder {
	if len(b.def.Nodes) == 0 {
		b.errs = append(b.errs, "At called before any AddNode")
		return b
	}
	b.def.Nodes[len(b.def.Nodes)-1].X = x
	b.def.Nodes[len(b.def.Nodes)-1].Y = y
	return b
}

// Connect adds a direct edge between two nodes by display name.
func (b *Builder) Connect(from, to string) *Builder {
	return b.connect(from, to, EdgeDirect, "")
}

// ConnectBranch adds a conditional edge carrying a sourceHandle, for wiring
// the "true"/"false" or "approved"/"rejected" branch of a condition or
// approval node.
func (b *Builder) ConnectBranch(from, to, sourceHandle string) *Builder {
	return b.connect(from, to, EdgeConditional, sourceHandle)
}

func (b *Builder) connect(from, to, edgeType, sourceHandle string) *Builder {
	fromID, ok := b.byName[from]
	if !ok {
		b.errs = append(b.errs, fmt.Sprintf("edge source %q is not an added node", from))
		return b
	}
	toID, ok := b.byName[to]
	if !ok {
		b.errs = append(b.errs, fmt.Sprintf("edge target %q is not an added node", to))
		return b
	}
	for _, e := range b.def.Edges {
		if e.From == fromID && e.To == toID && e.SourceHandle == sourceHandle {
			b.errs = append(b.errs, fmt.Sprintf("duplicate edge %s -> %s", from, to))
			return b
		}
	}
	b.def.Edges = append(b.def.Edges, EdgeDef{
		ID:           fmt.Sprintf("e%d", len(b.def.Edges)+1),
		From:         fromID,
		To:           toID,
		Type:         edgeType,
		SourceHandle: sourceHandle,
	})
	return b
}

// OnSchedule adds a cron schedule trigger.
func (b *Builder) OnSchedule(cronExpr string) *Builder {
	b.def.Triggers = append(b.def.Triggers, TriggerDef{
		ID:     fmt.Sprintf("t%d", len(b.def.Triggers)+1),
		Type:   "schedule",
		Config: map[string]any{"schedule": cronExpr},
	})
	return b
}

// OnWebhook adds an HTTP webhook trigger gated to the given method.
func (b *Builder) OnWebhook(method string) *Builder {
	b.def.Triggers = append(b.def.Triggers, TriggerDef{
		ID:     fmt.Sprintf("t%d", len(b.def.Triggers)+1),
		Type:   "http",
		Config: map[string]any{"method": method},
	})
	return b
}

// Build finalizes the definition, reporting every accumulated chain error
// plus the structural basics the server would reject anyway: a name,
// exactly one input node, and exactly one output node.
func (b *Builder) Build() (Definition, error) {
	errs := append([]string(nil), b.errs...)

	if strings.TrimSpace(b.def.Name) == "" {
		errs = append(errs, "workflow name is required")
	}
	inputs, outputs := 0, 0
	for _, n := range b.def.Nodes {
		switch n.Type {
		case NodeInput:
			inputs++
		case NodeOutput:
			outputs++
		}
	}
	if inputs != 1 {
		errs = append(errs, fmt.Sprintf("workflow needs exactly one input node, has %d", inputs))
	}
	if outputs != 1 {
		errs = append(errs, fmt.Sprintf("workflow needs exactly one output node, has %d", outputs))
	}

	if len(errs) > 0 {
		return Definition{}, fmt.Errorf("workflow build: %s", strings.Join(errs, "; "))
	}
	return b.def, nil
}

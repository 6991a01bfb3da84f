package workflow

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildLinearWorkflow(t *testing.T) {
	def, err := New("echo", "1").
		Description("input straight to output").
		AddNode(NodeInput, "Input", nil).At(0, 0).
		AddNode(NodeOutput, "Output", map[string]any{"source": "{{Input.value}}"}).At(200, 0).
		Connect("Input", "Output").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(def.Nodes) != 2 || len(def.Edges) != 1 {
		t.Fatalf("unexpected shape: %d nodes, %d edges", len(def.Nodes), len(def.Edges))
	}
	edge := def.Edges[0]
	if edge.From != def.Nodes[0].ID || edge.To != def.Nodes[1].ID || edge.Type != EdgeDirect {
		t.Fatalf("edge not wired by node name: %+v", edge)
	}
}

func TestBuildConditionBranches(t *testing.T) {
	def, err := New("branchy", "1").
		AddNode(NodeInput, "Input", nil).
		AddNode(NodeCondition, "Check", map[string]any{
			"rules": []any{map[string]any{"left": "{{Input.prompt}}", "operator": "contains", "right": "x"}},
		}).
		AddNode(NodeBash, "Yes", map[string]any{"script": "printf yes"}).
		AddNode(NodeOutput, "Output", nil).
		Connect("Input", "Check").
		ConnectBranch("Check", "Yes", "true").
		Connect("Yes", "Output").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var branch EdgeDef
	for _, e := range def.Edges {
		if e.SourceHandle == "true" {
			branch = e
		}
	}
	if branch.Type != EdgeConditional {
		t.Fatalf("expected the branch edge to be conditional, got %+v", branch)
	}
}

func TestBuildRejectsStructuralErrors(t *testing.T) {
	_, err := New("", "1").
		AddNode(NodeBash, "Work", map[string]any{"script": "true"}).
		AddNode(NodeBash, "Work", nil).
		Connect("Work", "Missing").
		Build()
	if err == nil {
		t.Fatal("expected Build to fail")
	}
	for _, want := range []string{"name is required", "duplicate node name", "not an added node", "exactly one input", "exactly one output"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %q, got %v", want, err)
		}
	}
}

// TestDefinitionMarshalsToWireShape pins the JSON field names to the shape
// the HTTP create endpoint and save-workflow socket message decode.
func TestDefinitionMarshalsToWireShape(t *testing.T) {
	def, err := New("wire", "1").
		AddNode(NodeInput, "Input", nil).
		AddNode(NodeOutput, "Output", nil).
		Connect("Input", "Output").
		OnSchedule("0 * * * *").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	raw, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"name", "version", "nodes", "edges", "triggers"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("wire JSON missing %q: %s", key, raw)
		}
	}
	node := decoded["nodes"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "type", "name"} {
		if _, ok := node[key]; !ok {
			t.Fatalf("node JSON missing %q: %s", key, raw)
		}
	}
}

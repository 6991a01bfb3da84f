package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/approval"
	"github.com/smilemakc/agentflow/internal/bus"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
	"github.com/smilemakc/agentflow/internal/node/executors"
)

func newTestWorkflow(t *testing.T) domain.Workflow {
	t.Helper()
	w, err := domain.NewWorkflow("test", "1", "", nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	return w
}

func newTestEngine() *Engine {
	reg := node.NewRegistry()
	executors.RegisterDefaults(reg)
	e := New(reg, bus.New())
	e.Config.DefaultNodeTimeout = 2 * time.Second
	return e
}

// TestLinearRunPassesThroughToOutput covers the simplest possible run:
// Input -> Output, with no agent, carries the raw input through to the
// final result.
func TestLinearRunPassesThroughToOutput(t *testing.T) {
	w := newTestWorkflow(t)
	in, err := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := w.AddNode(domain.NodeTypeOutput, "Output", map[string]any{"source": "{{Input.value}}"}, domain.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(in, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.Run(context.Background(), w, exec, "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != "hello" {
		t.Fatalf("expected passthrough result %q, got %v", "hello", result)
	}
}

// TestConditionPruneSkipsUntakenBranch mirrors end-to-end scenario 2:
// Input -> Condition -> (true)A -> Output; (false)B -> Output. A and B both
// feed the same single Output node so the workflow keeps exactly one of
// each required terminal node type.
func TestConditionPruneSkipsUntakenBranch(t *testing.T) {
	w := newTestWorkflow(t)
	in, _ := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	cond, _ := w.AddNode(domain.NodeTypeCondition, "Cond", map[string]any{
		"rules": []any{
			map[string]any{"left": "{{Input.prompt}}", "operator": "contains", "right": "x"},
		},
	}, domain.Position{})
	nodeA, _ := w.AddNode(domain.NodeTypeBash, "A", map[string]any{"script": "printf branch-a"}, domain.Position{})
	nodeB, _ := w.AddNode(domain.NodeTypeBash, "B", map[string]any{"script": "printf branch-b"}, domain.Position{})
	out, _ := w.AddNode(domain.NodeTypeOutput, "Output", nil, domain.Position{})

	if _, err := w.AddEdge(in, cond, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(cond, nodeA, domain.EdgeTypeConditional, nil, "true"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(cond, nodeB, domain.EdgeTypeConditional, nil, "false"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(nodeA, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(nodeB, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.Run(context.Background(), w, exec, "xyz")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	states := exec.GetAllNodeStates()
	bState, ok := states[nodeB]
	if !ok || bState.Status() != domain.NodeStatusSkipped {
		t.Fatalf("expected node B to be skipped, got %+v", bState)
	}
	aState, ok := states[nodeA]
	if !ok || aState.Status() != domain.NodeStatusCompleted {
		t.Fatalf("expected node A to complete, got %+v", aState)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected final output to be A's single-predecessor output, got %T: %v", result, result)
	}
	if m["stdout"] != "branch-a" {
		t.Fatalf("expected output sourced from branch A, got %+v", m)
	}
}

// TestInterruptStopsRun verifies that cancelling a run's context aborts an
// in-flight node promptly rather than letting the workflow complete.
func TestInterruptStopsRun(t *testing.T) {
	w := newTestWorkflow(t)
	in, _ := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	slow, _ := w.AddNode(domain.NodeTypeBash, "Slow", map[string]any{
		"script":    "sleep 5",
		"timeoutMs": 10000,
	}, domain.Position{})
	out, _ := w.AddNode(domain.NodeTypeOutput, "Output", map[string]any{"source": "{{Slow.stdout}}"}, domain.Position{})

	if _, err := w.AddEdge(in, slow, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(slow, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_, _ = e.Run(ctx, w, exec, "go")
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}
}

// TestInterruptPublishesCanonicalError verifies the interrupt contract: the
// journal ends with an execution-error whose message is exactly the one
// clients key on, and the in-flight node is reported errored with the same
// message.
func TestInterruptPublishesCanonicalError(t *testing.T) {
	w := newTestWorkflow(t)
	in, _ := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	slow, _ := w.AddNode(domain.NodeTypeBash, "Slow", map[string]any{
		"script":    "sleep 5",
		"timeoutMs": 10000,
	}, domain.Position{})
	out, _ := w.AddNode(domain.NodeTypeOutput, "Output", map[string]any{"source": "{{Slow.stdout}}"}, domain.Position{})
	if _, err := w.AddEdge(in, slow, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(slow, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Run(ctx, w, exec, "go")
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case runErr := <-done:
		if apperrors.CodeOf(runErr) != apperrors.CodeInterrupted {
			t.Fatalf("expected INTERRUPTED run error, got %v", runErr)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return promptly after interrupt")
	}

	events := e.Bus.Replay(exec.ID().String(), nil)
	if len(events) == 0 {
		t.Fatal("no events journaled")
	}
	last := events[len(events)-1]
	if last.Kind != bus.EventExecutionError || last.Error != "Execution interrupted" {
		t.Fatalf("expected terminal execution-error %q, got %s %q", "Execution interrupted", last.Kind, last.Error)
	}
	foundNodeError := false
	for _, ev := range events {
		if ev.Kind == bus.EventNodeError && ev.NodeID == slow.String() && ev.Error == "Execution interrupted" {
			foundNodeError = true
		}
	}
	if !foundNodeError {
		t.Fatal("expected a node-error with the interrupt message for the in-flight node")
	}
}

// TestNodeTimeoutSurfacesTimeoutCode bounds a node that would wait forever
// (an approval nobody answers) with the engine default timeout and expects
// the run to fail with the TIMEOUT code.
func TestNodeTimeoutSurfacesTimeoutCode(t *testing.T) {
	w := newTestWorkflow(t)
	in, _ := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	gate, _ := w.AddNode(domain.NodeTypeApproval, "Gate", map[string]any{"promptMessage": "ok?"}, domain.Position{})
	out, _ := w.AddNode(domain.NodeTypeOutput, "Output", nil, domain.Position{})
	if _, err := w.AddEdge(in, gate, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(gate, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	e.Config.DefaultNodeTimeout = 100 * time.Millisecond
	e.Approver = approval.NewCoordinator()
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}

	_, runErr := e.Run(context.Background(), w, exec, "go")
	if apperrors.CodeOf(runErr) != apperrors.CodeTimeout {
		t.Fatalf("expected TIMEOUT run error, got %v", runErr)
	}
}

// TestRunWithSeedReusesRecordedOutputs replays from a seed: the input and
// the expensive middle node start pre-completed, so only the output node
// executes, sourcing its value from the seeded outputs.
func TestRunWithSeedReusesRecordedOutputs(t *testing.T) {
	w := newTestWorkflow(t)
	in, _ := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	mid, _ := w.AddNode(domain.NodeTypeBash, "Mid", map[string]any{"script": "sleep 30"}, domain.Position{})
	out, _ := w.AddNode(domain.NodeTypeOutput, "Output", map[string]any{"source": "{{Mid.stdout}}"}, domain.Position{})
	if _, err := w.AddEdge(in, mid, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(mid, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}

	seed := map[uuid.UUID]map[string]any{
		in:  {"prompt": "go", "value": "go"},
		mid: {"stdout": "seeded"},
	}
	result, runErr := e.RunWithSeed(context.Background(), w, exec, "go", seed)
	if runErr != nil {
		t.Fatalf("RunWithSeed: %v", runErr)
	}
	if result != "seeded" {
		t.Fatalf("expected output sourced from the seeded value, got %v", result)
	}

	states := exec.GetAllNodeStates()
	if st, ok := states[mid]; !ok || st.Status() != domain.NodeStatusCompleted {
		t.Fatalf("expected seeded node recorded complete, got %+v", st)
	}
}

// TestRecoverableConditionErrorContinues wires the output so it stays
// reachable when the condition fails: the condition's branch is pruned, the
// node is marked errored, and the run still completes through the direct
// path.
func TestRecoverableConditionErrorContinues(t *testing.T) {
	w := newTestWorkflow(t)
	in, _ := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	cond, _ := w.AddNode(domain.NodeTypeCondition, "Cond", map[string]any{
		"rules": []any{
			map[string]any{"left": "x", "operator": "regex", "right": "(("},
		},
	}, domain.Position{})
	branch, _ := w.AddNode(domain.NodeTypeBash, "Branch", map[string]any{"script": "printf branch"}, domain.Position{})
	out, _ := w.AddNode(domain.NodeTypeOutput, "Output", nil, domain.Position{})
	if _, err := w.AddEdge(in, cond, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(cond, branch, domain.EdgeTypeConditional, nil, "true"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(branch, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(in, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}

	if _, runErr := e.Run(context.Background(), w, exec, "go"); runErr != nil {
		t.Fatalf("expected run to survive the condition failure, got %v", runErr)
	}

	states := exec.GetAllNodeStates()
	if st, ok := states[cond]; !ok || st.Status() != domain.NodeStatusFailed {
		t.Fatalf("expected condition recorded failed, got %+v", st)
	}
	if st, ok := states[branch]; !ok || st.Status() != domain.NodeStatusSkipped {
		t.Fatalf("expected pruned branch recorded skipped, got %+v", st)
	}

	events := e.Bus.Replay(exec.ID().String(), nil)
	last := events[len(events)-1]
	if last.Kind != bus.EventExecutionComplete {
		t.Fatalf("expected the journal to end with execution-complete, got %s", last.Kind)
	}
}

// TestApprovalRejectFlowsToOutput drives end-to-end scenario 3: the gate
// suspends with node-waiting, a rejection is submitted, and the approval's
// {approved:false} output flows through to the final result.
func TestApprovalRejectFlowsToOutput(t *testing.T) {
	w := newTestWorkflow(t)
	in, _ := w.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	gate, _ := w.AddNode(domain.NodeTypeApproval, "Gate", map[string]any{"promptMessage": "ship it?"}, domain.Position{})
	out, _ := w.AddNode(domain.NodeTypeOutput, "Output", nil, domain.Position{})
	if _, err := w.AddEdge(in, gate, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddEdge(gate, out, domain.EdgeTypeDirect, nil, ""); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	coordinator := approval.NewCoordinator()
	e.Approver = coordinator
	exec, err := domain.NewExecution(uuid.New(), w.ID())
	if err != nil {
		t.Fatal(err)
	}
	execID := exec.ID().String()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if coordinator.Submit(execID, gate.String(), domain.ApprovalResponse{Approved: false, Feedback: "no"}) {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	result, runErr := e.Run(context.Background(), w, exec, "draft")
	<-done
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}

	m, ok := result.(map[string]any)
	if !ok || m["approved"] != false || m["feedback"] != "no" {
		t.Fatalf("expected the rejection to flow to the output, got %v", result)
	}

	foundWaiting := false
	for _, ev := range e.Bus.Replay(execID, nil) {
		if ev.Kind == bus.EventNodeWaiting && ev.NodeID == gate.String() {
			foundWaiting = true
		}
	}
	if !foundWaiting {
		t.Fatal("expected a node-waiting event for the approval gate")
	}
}

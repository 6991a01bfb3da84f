// Package engine implements the scheduler: the run loop that walks a
// workflow's graph from its input node, dispatching ready nodes through the
// node registry, resolving references against completed sibling outputs,
// pruning branches a condition/approval/merge node didn't take, and
// publishing every state transition to the event bus.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smilemakc/agentflow/internal/agent"
	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/bus"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/infrastructure/tracing"
	"github.com/smilemakc/agentflow/internal/node"
	"github.com/smilemakc/agentflow/internal/reference"
)

// Config tunes the scheduler's defaults. Per-node overrides (a node's own
// "timeoutMs" config) always take precedence where the node type supports
// one.
type Config struct {
	// DefaultNodeTimeout bounds a single node's Execute call when its own
	// config carries no timeout.
	DefaultNodeTimeout time.Duration
	// MaxNodeReentries caps how many times one node may re-run via a loop
	// back-edge before the run fails with CYCLE_DETECTED.
	MaxNodeReentries int
}

func DefaultConfig() Config {
	return Config{
		DefaultNodeTimeout: 5 * time.Minute,
		MaxNodeReentries:   1000,
	}
}

// Approver suspends a running approval node until a human responds.
type Approver interface {
	Suspend(ctx context.Context, executionID, nodeID string, timeout time.Duration) (domain.ApprovalResponse, error)
}

// Evolver validates and applies a self-reflect node's proposed mutations
// against the live workflow definition. executionID/nodeID key a "suggest"
// mode evolution to the same approval coordinator slot an approval node
// would use. validationErrs carries the per-mutation INVALID_INPUT/
// SCOPE_VIOLATION/etc. diagnostics the evolution validator produced, regardless of
// whether the batch as a whole was applied.
type Evolver interface {
	Propose(ctx context.Context, executionID, nodeID string, wf domain.Workflow, evo domain.Evolution) (applied bool, approvalRequested bool, validationErrs []*apperrors.Error, err error)
}

// Engine ties the node registry, agent adapters, approval coordinator,
// evolution pipeline and event bus together into one runnable scheduler.
type Engine struct {
	Registry *node.Registry
	Bus      *bus.Bus
	Approver Approver
	Evolver  Evolver
	Agents   map[domain.NodeType]agent.Adapter
	Config   Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(registry *node.Registry, b *bus.Bus) *Engine {
	return &Engine{
		Registry: registry,
		Bus:      b,
		Agents:   make(map[domain.NodeType]agent.Adapter),
		Config:   DefaultConfig(),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Interrupt cancels a running execution's context, aborting every in-flight
// node and unblocking any node suspended on approval. A no-op if
// executionID isn't currently running.
func (e *Engine) Interrupt(executionID string) {
	e.mu.Lock()
	cancel, ok := e.cancels[executionID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// nodeRecord tracks one node's live scheduling state for the duration of a
// run. outputs/handle are only ever written by the single coordinator
// goroutine in Run, so no lock is needed on them individually — the run's
// mu still guards the maps themselves against concurrent map iteration
// from bus-facing readers (e.g. a status endpoint), if one is added later.
type nodeRecord struct {
	status    domain.NodeStatus
	output    any
	handle    string
	reentries int
}

// run holds all per-execution mutable scheduling state.
type run struct {
	mu sync.Mutex

	wf           domain.Workflow
	exec         domain.Execution
	byID         map[uuid.UUID]domain.Node
	byName       map[uuid.UUID]string
	forward      map[uuid.UUID][]domain.Edge // outgoing edges by source node
	incoming     map[uuid.UUID][]domain.Edge // incoming edges by dest node
	records      map[uuid.UUID]*nodeRecord
	edgeSignaled map[uuid.UUID]bool // token model: edge ID -> pending signal
	edgePruned   map[uuid.UUID]bool

	inputID      uuid.UUID
	outputID     uuid.UUID
	initialInput string
}

type completion struct {
	nodeID uuid.UUID
	output node.Output
	err    error
}

// Run executes wf from its input node through to its output node, blocking
// until the workflow completes, fails, or ctx is cancelled. initialInput is
// the raw string handed to the input node.
func (e *Engine) Run(ctx context.Context, wf domain.Workflow, exec domain.Execution, initialInput string) (any, error) {
	return e.RunWithSeed(ctx, wf, exec, initialInput, nil)
}

// RunWithSeed is Run with a set of pre-completed node outputs, used by the
// replay planner: every seeded node starts the run already complete with the
// given output, its outgoing edges signaled as if it had just finished, so
// scheduling resumes at the seed frontier instead of the input node.
func (e *Engine) RunWithSeed(ctx context.Context, wf domain.Workflow, exec domain.Execution, initialInput string, seed map[uuid.UUID]map[string]any) (any, error) {
	r, err := e.newRun(wf, exec)
	if err != nil {
		return nil, err
	}

	executionID := exec.ID().String()
	e.Bus.Publish(executionID, bus.ExecutionStart(executionID, wf.ID().String()))

	if err := exec.Start(uuid.Nil, map[string]any{"input": initialInput}); err != nil {
		return nil, err
	}
	r.initialInput = initialInput
	e.applySeed(r, executionID, seed)

	completions := make(chan completion, 32)
	inflight := 0

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.cancels[executionID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, executionID)
		e.mu.Unlock()
	}()

	for {
		ready := r.readyNodes()
		if len(ready) == 0 {
			r.mu.Lock()
			done := r.records[r.outputID].status.IsTerminal()
			anyRunning := false
			for _, rec := range r.records {
				if rec.status == domain.NodeStatusRunning {
					anyRunning = true
					break
				}
			}
			r.mu.Unlock()
			if done {
				break
			}
			if !anyRunning {
				return nil, apperrors.New(apperrors.CodeInvariantViolated, "workflow deadlocked: no ready nodes and nothing in flight")
			}
		}

		for _, id := range ready {
			id := id
			r.mu.Lock()
			rec := r.records[id]
			if rec.reentries > e.Config.MaxNodeReentries {
				r.mu.Unlock()
				cancel()
				return nil, apperrors.New(apperrors.CodeCycleDetected,
					fmt.Sprintf("node %q re-entered more than %d times", r.byName[id], e.Config.MaxNodeReentries))
			}
			rec.status = domain.NodeStatusRunning
			rec.reentries++
			n := r.byID[id]
			r.mu.Unlock()

			e.Bus.Publish(executionID, bus.NodeStart(executionID, id.String(), n.Name()))
			_ = exec.StartNode(id, n.Name(), n.Type(), nil)

			inflight++
			go func() {
				out, err := e.executeOne(runCtx, r, executionID, n)
				completions <- completion{nodeID: id, output: out, err: err}
			}()
		}

		select {
		case c := <-completions:
			inflight--
			if runCtx.Err() != nil {
				// The interrupt raced this completion; fold it into the
				// drain so the run reports the canonical interrupt error
				// rather than whichever node happened to unwind first.
				e.noteInterruptedNode(r, executionID, c)
				return nil, e.finishInterrupted(r, executionID, completions, inflight)
			}
			if err := e.handleCompletion(r, executionID, c); err != nil {
				cancel()
				return nil, err
			}
		case <-runCtx.Done():
			return nil, e.finishInterrupted(r, executionID, completions, inflight)
		}
	}

	finalOutput := r.records[r.outputID].output
	if err := exec.Complete(map[string]any{"output": finalOutput}); err != nil {
		return nil, err
	}
	e.Bus.Publish(executionID, bus.ExecutionComplete(executionID, finalOutput))
	return finalOutput, nil
}

func (e *Engine) newRun(wf domain.Workflow, exec domain.Execution) (*run, error) {
	nodes := wf.GetAllNodes()
	edges := wf.GetAllEdges()

	r := &run{
		wf:           wf,
		exec:         exec,
		byID:         make(map[uuid.UUID]domain.Node, len(nodes)),
		byName:       make(map[uuid.UUID]string, len(nodes)),
		forward:      make(map[uuid.UUID][]domain.Edge),
		incoming:     make(map[uuid.UUID][]domain.Edge),
		records:      make(map[uuid.UUID]*nodeRecord, len(nodes)),
		edgeSignaled: make(map[uuid.UUID]bool, len(edges)),
		edgePruned:   make(map[uuid.UUID]bool, len(edges)),
	}

	for _, n := range nodes {
		r.byID[n.ID()] = n
		r.byName[n.ID()] = n.Name()
		r.records[n.ID()] = &nodeRecord{status: domain.NodeStatusPending}
		switch n.Type() {
		case domain.NodeTypeInput:
			r.inputID = n.ID()
		case domain.NodeTypeOutput:
			r.outputID = n.ID()
		}
	}
	if r.inputID == uuid.Nil || r.outputID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeMissingInput, "workflow must have an input and output node to run")
	}

	for _, edge := range edges {
		r.forward[edge.FromNodeID()] = append(r.forward[edge.FromNodeID()], edge)
		r.incoming[edge.ToNodeID()] = append(r.incoming[edge.ToNodeID()], edge)
	}

	return r, nil
}

// signalOutgoing marks every outgoing edge of nodeID whose SourceHandle
// matches chosenHandle (or every outgoing edge, if chosenHandle is "") as
// signaled, and every sibling edge (same source, non-matching handle) as
// pruned.
func (r *run) signalOutgoing(nodeID uuid.UUID, chosenHandle string) {
	for _, edge := range r.forward[nodeID] {
		if chosenHandle == "" || edge.SourceHandle() == "" || edge.SourceHandle() == chosenHandle {
			r.edgeSignaled[edge.ID()] = true
			delete(r.edgePruned, edge.ID())
		} else {
			r.edgePruned[edge.ID()] = true
			delete(r.edgeSignaled, edge.ID())
		}
	}
}

// readyNodes returns every node whose dispatch condition currently holds,
// consuming (clearing) the incoming edge signals it consumes. Start and
// merge nodes are only dispatched while pending; any other node is
// dispatched whenever its live incoming edges all carry a signal, so a loop
// back-edge can re-run a completed node. Must be called with r.mu
// unlocked; it takes the lock itself.
func (r *run) readyNodes() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ready []uuid.UUID
	for id, rec := range r.records {
		if rec.status == domain.NodeStatusRunning {
			continue
		}
		if len(r.incoming[id]) == 0 {
			// No predecessors: a start node (the input), dispatched exactly
			// once. Without a signaling edge to re-trigger it, it must not
			// be reconsidered once it leaves the pending state.
			if rec.status == domain.NodeStatusPending {
				ready = append(ready, id)
			}
			continue
		}
		n := r.byID[id]
		if n.Type() == domain.NodeTypeMerge {
			if rec.status == domain.NodeStatusPending && r.mergeReady(n, id) {
				ready = append(ready, id)
			}
			continue
		}
		if r.tokenReady(id) {
			ready = append(ready, id)
		}
	}

	r.pruneUnreachable()
	return ready
}

// tokenReady reports whether id has at least one live incoming edge and
// every live incoming edge currently carries a pending signal, consuming
// them if so. A node whose incoming edges are all pruned is never ready.
func (r *run) tokenReady(id uuid.UUID) bool {
	incoming := r.incoming[id]
	if len(incoming) == 0 {
		return false
	}
	live := 0
	for _, edge := range incoming {
		if r.edgePruned[edge.ID()] {
			continue
		}
		live++
		if !r.edgeSignaled[edge.ID()] {
			return false
		}
	}
	if live == 0 {
		return false
	}
	for _, edge := range incoming {
		if !r.edgePruned[edge.ID()] {
			delete(r.edgeSignaled, edge.ID())
		}
	}
	return true
}

func (r *run) mergeReady(n domain.Node, id uuid.UUID) bool {
	strategy, _ := n.Config()["strategy"].(string)
	incoming := r.incoming[id]
	if len(incoming) == 0 {
		return false
	}
	switch strategy {
	case "first-complete":
		for _, edge := range incoming {
			if r.records[edge.FromNodeID()].status == domain.NodeStatusCompleted {
				return true
			}
		}
		return false
	default: // wait-all
		for _, edge := range incoming {
			if r.edgePruned[edge.ID()] {
				continue
			}
			if !r.records[edge.FromNodeID()].status.IsTerminal() {
				return false
			}
		}
		return true
	}
}

// pruneUnreachable marks any pending node no longer reachable from the
// input node (because every path to it now runs through a pruned edge) as
// skipped, and prunes that node's own outgoing edges in turn so a
// downstream join (e.g. two condition branches re-converging on one
// Output/Merge node) doesn't wait forever on a signal the skipped branch
// will never produce. Skipping can cascade — skipping a node may itself
// make its successors unreachable — so this repeats to a fixed point.
// Must be called with r.mu held.
func (r *run) pruneUnreachable() {
	for {
		reachable := map[uuid.UUID]bool{r.inputID: true}
		queue := []uuid.UUID{r.inputID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, edge := range r.forward[cur] {
				if r.edgePruned[edge.ID()] {
					continue
				}
				to := edge.ToNodeID()
				if !reachable[to] {
					reachable[to] = true
					queue = append(queue, to)
				}
			}
		}

		changed := false
		for id, rec := range r.records {
			if rec.status != domain.NodeStatusPending || reachable[id] {
				continue
			}
			rec.status = domain.NodeStatusSkipped
			_ = r.exec.SkipNode(id, r.byName[id], "branch not taken")
			for _, edge := range r.forward[id] {
				if !r.edgePruned[edge.ID()] {
					r.edgePruned[edge.ID()] = true
					delete(r.edgeSignaled, edge.ID())
				}
			}
			changed = true
		}
		if !changed {
			return
		}
	}
}

// interruptedMessage is the exact wire text clients key on when a run-wide
// interrupt fires.
const interruptedMessage = "Execution interrupted"

// noteInterruptedNode records one node that was still in flight when the
// run-wide interrupt fired.
func (e *Engine) noteInterruptedNode(r *run, executionID string, c completion) {
	if c.err == nil {
		return
	}
	r.mu.Lock()
	n := r.byID[c.nodeID]
	r.records[c.nodeID].status = domain.NodeStatusFailed
	r.mu.Unlock()
	e.Bus.Publish(executionID, bus.NodeError(executionID, c.nodeID.String(), interruptedMessage))
	_ = r.exec.FailNode(c.nodeID, n.Name(), n.Type(), interruptedMessage, 0)
}

// finishInterrupted waits for the remaining in-flight executors to unwind
// (cancellation guarantees each drains to a terminal completion rather than
// vanishing), reports every errored one as interrupted, then closes the run
// out with the canonical interrupt error.
func (e *Engine) finishInterrupted(r *run, executionID string, completions chan completion, remaining int) error {
	for i := 0; i < remaining; i++ {
		e.noteInterruptedNode(r, executionID, <-completions)
	}
	_ = r.exec.Fail(interruptedMessage, uuid.Nil)
	e.Bus.Publish(executionID, bus.ExecutionError(executionID, interruptedMessage))
	return apperrors.New(apperrors.CodeInterrupted, interruptedMessage)
}

// applySeed marks every seeded node complete with its recorded output and
// signals its outgoing edges, so the ready-set computation resumes from the
// seed frontier. Each seeded node still gets its node-start/node-complete
// bracket on the bus so the journal shape matches a normal run.
func (e *Engine) applySeed(r *run, executionID string, seed map[uuid.UUID]map[string]any) {
	for id, output := range seed {
		r.mu.Lock()
		rec, ok := r.records[id]
		if !ok {
			r.mu.Unlock()
			continue
		}
		n := r.byID[id]
		rec.status = domain.NodeStatusCompleted
		rec.output = output
		rec.handle = seededHandle(output)
		r.mu.Unlock()

		e.Bus.Publish(executionID, bus.NodeStart(executionID, id.String(), n.Name()))
		_ = r.exec.StartNode(id, n.Name(), n.Type(), nil)
		_ = r.exec.CompleteNode(id, n.Name(), n.Type(), output, 0)
		e.Bus.Publish(executionID, bus.NodeComplete(executionID, id.String(), rec.output))

		r.mu.Lock()
		r.signalOutgoing(id, rec.handle)
		for _, edge := range r.forward[id] {
			// An edge into another seeded node must not re-dispatch it.
			if _, seeded := seed[edge.ToNodeID()]; seeded {
				delete(r.edgeSignaled, edge.ID())
			}
		}
		r.mu.Unlock()
	}
}

// seededHandle recovers the sourceHandle a branching node chose from its
// recorded output, so replay takes the same branch the source execution
// took.
func seededHandle(output map[string]any) string {
	if matched, ok := output["matched"].(bool); ok {
		if matched {
			return "true"
		}
		return "false"
	}
	if approved, ok := output["approved"].(bool); ok {
		if approved {
			return "approved"
		}
		return "rejected"
	}
	return ""
}

// recoverableNodeType reports whether a failure in this node type may leave
// the rest of the run viable: the node is marked errored and its branch
// pruned, and the run continues as long as the output node stays reachable.
func recoverableNodeType(t domain.NodeType) bool {
	switch t {
	case domain.NodeTypeCondition, domain.NodeTypeApproval, domain.NodeTypeSelfReflect:
		return true
	}
	return false
}

func (e *Engine) handleCompletion(r *run, executionID string, c completion) error {
	r.mu.Lock()
	rec := r.records[c.nodeID]
	n := r.byID[c.nodeID]
	r.mu.Unlock()

	if c.err != nil {
		r.mu.Lock()
		rec.status = domain.NodeStatusFailed
		r.mu.Unlock()
		e.Bus.Publish(executionID, bus.NodeError(executionID, c.nodeID.String(), c.err.Error()))
		_ = r.exec.FailNode(c.nodeID, n.Name(), n.Type(), c.err.Error(), 0)

		if recoverableNodeType(n.Type()) && apperrors.CodeOf(c.err) != apperrors.CodeInterrupted {
			r.mu.Lock()
			for _, edge := range r.forward[c.nodeID] {
				r.edgePruned[edge.ID()] = true
				delete(r.edgeSignaled, edge.ID())
			}
			r.pruneUnreachable()
			outputLive := r.records[r.outputID].status != domain.NodeStatusSkipped
			r.mu.Unlock()
			if outputLive {
				return nil
			}
		}

		_ = r.exec.Fail(c.err.Error(), c.nodeID)
		e.Bus.Publish(executionID, bus.ExecutionError(executionID, c.err.Error()))
		return c.err
	}

	r.mu.Lock()
	rec.status = domain.NodeStatusCompleted
	rec.output = c.output.Data
	rec.handle = c.output.Handle
	r.mu.Unlock()

	outData, ok := c.output.Data.(map[string]any)
	if !ok && c.output.Data != nil {
		outData = map[string]any{"value": c.output.Data}
	}
	_ = r.exec.CompleteNode(c.nodeID, n.Name(), n.Type(), outData, 0)
	e.Bus.Publish(executionID, bus.NodeComplete(executionID, c.nodeID.String(), c.output.Data))

	r.mu.Lock()
	r.signalOutgoing(c.nodeID, c.output.Handle)
	r.mu.Unlock()

	return nil
}

// executeOne resolves n's config and drives its executor once, bounded by
// either the node's own timeout config or the engine default.
func (e *Engine) executeOne(ctx context.Context, r *run, executionID string, n domain.Node) (node.Output, error) {
	executor, err := e.Registry.Get(n.Type())
	if err != nil {
		return node.Output{}, err
	}
	if err := executor.Validate(n); err != nil {
		return node.Output{}, apperrors.Wrap(apperrors.CodeValidationFailed,
			fmt.Sprintf("node %q failed config validation", n.Name()), err)
	}

	timeout := e.Config.DefaultNodeTimeout
	if override, ok := configMillis(n.Config(), "timeoutMs"); ok {
		timeout = override
	}
	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nodeCtx, span := tracing.StartSpan(nodeCtx, "node.execute",
		attribute.String("node.name", n.Name()),
		attribute.String("node.type", string(n.Type())))

	lookup := r.outputLookup()
	predecessorNames, predecessorLookup := r.predecessorViews(n.ID())

	cfg := n.Config()
	cfgCopy := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		cfgCopy[k] = v
	}
	cfgCopy["__executionInput"] = r.initialInput

	in := node.Input{
		ExecutionID: executionID,
		WorkflowID:  r.wf.ID().String(),
		Node:        n,
		Config:      cfgCopy,
		Resolve:     func(s string) string { return reference.Resolve(s, lookup) },
		Emit:        func(ev domain.AgentEvent) { e.Bus.Publish(executionID, bus.NodeOutput(executionID, n.ID().String(), ev)) },

		Predecessors:      predecessorNames,
		PredecessorOutput: predecessorLookup,

		Agent: e.Agents[n.Type()],

		Approve: func(ctx context.Context, req domain.ApprovalRequest, timeoutSeconds float64) (domain.ApprovalResponse, error) {
			e.Bus.Publish(executionID, bus.NodeWaiting(executionID, n.ID().String(), req))
			if e.Approver == nil {
				return domain.ApprovalResponse{}, fmt.Errorf("no approval coordinator configured")
			}
			var timeout time.Duration
			if timeoutSeconds > 0 {
				timeout = time.Duration(timeoutSeconds * float64(time.Second))
			}
			return e.Approver.Suspend(ctx, executionID, n.ID().String(), timeout)
		},

		Evolve: func(ctx context.Context, evo domain.Evolution) (bool, bool, error) {
			if e.Evolver == nil {
				return false, false, fmt.Errorf("no evolution pipeline configured")
			}
			applied, approvalRequested, validationErrs, err := e.Evolver.Propose(ctx, executionID, n.ID().String(), r.wf, evo)
			e.Bus.Publish(executionID, bus.NodeEvolution(executionID, n.ID().String(), evo, applied, approvalRequested, validationErrs))
			if applied {
				// The applier changed the live definition; re-snapshot so
				// nodes the evolution added or rewired are schedulable and
				// not-yet-started nodes read their new config when pulled
				// from the ready set.
				r.resnapshot()
			}
			return applied, approvalRequested, err
		},
	}

	out, err := executor.Execute(nodeCtx, in)
	if err != nil && nodeCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = apperrors.Wrap(apperrors.CodeTimeout,
			fmt.Sprintf("node %q exceeded its %s timeout", n.Name(), timeout), err)
	}
	tracing.EndSpan(span, err)
	return out, err
}

// configMillis reads a millisecond count out of a node config, accepting
// both the float64 a JSON decode produces and the int a hand-built config
// map carries.
func configMillis(cfg map[string]any, key string) (time.Duration, bool) {
	switch v := cfg[key].(type) {
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Millisecond, true
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Millisecond, true
		}
	}
	return 0, false
}

// resnapshot rebuilds the run's node/edge indices from the live workflow
// after an applied evolution. Nodes added by the evolution start pending;
// records for removed nodes are kept (their history already happened) but
// their edges vanish from the adjacency maps, so they can never be
// re-dispatched. Signal/prune state is preserved for edges that survive.
func (r *run) resnapshot() {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.wf.GetAllNodes()
	edges := r.wf.GetAllEdges()

	r.byID = make(map[uuid.UUID]domain.Node, len(nodes))
	r.byName = make(map[uuid.UUID]string, len(nodes))
	for _, n := range nodes {
		r.byID[n.ID()] = n
		r.byName[n.ID()] = n.Name()
		if _, ok := r.records[n.ID()]; !ok {
			r.records[n.ID()] = &nodeRecord{status: domain.NodeStatusPending}
		}
	}

	r.forward = make(map[uuid.UUID][]domain.Edge)
	r.incoming = make(map[uuid.UUID][]domain.Edge)
	live := make(map[uuid.UUID]bool, len(edges))
	for _, edge := range edges {
		live[edge.ID()] = true
		r.forward[edge.FromNodeID()] = append(r.forward[edge.FromNodeID()], edge)
		r.incoming[edge.ToNodeID()] = append(r.incoming[edge.ToNodeID()], edge)
	}
	for id := range r.edgeSignaled {
		if !live[id] {
			delete(r.edgeSignaled, id)
		}
	}
	for id := range r.edgePruned {
		if !live[id] {
			delete(r.edgePruned, id)
		}
	}
}

// outputLookup builds a reference.Lookup snapshot over every node's output,
// keyed by node name, for resolving {{Name.path}} tokens.
func (r *run) outputLookup() reference.Lookup {
	return func(nodeName string) (any, bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		for id, rec := range r.records {
			if r.byName[id] == nodeName && rec.status == domain.NodeStatusCompleted {
				return rec.output, true
			}
		}
		return nil, false
	}
}

// predecessorViews returns the names of nodes with a live incoming edge
// into id, plus a lookup bound the same way as outputLookup, for the merge
// executor.
func (r *run) predecessorViews(id uuid.UUID) ([]string, func(string) (any, bool)) {
	r.mu.Lock()
	var names []string
	for _, edge := range r.incoming[id] {
		if r.edgePruned[edge.ID()] {
			continue
		}
		names = append(names, r.byName[edge.FromNodeID()])
	}
	r.mu.Unlock()
	return names, r.outputLookup()
}

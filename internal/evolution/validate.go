// Package evolution implements the evolution validator and applier
//: the shadow-copy-and-check pass a self-reflect node's proposed
// mutation batch must pass before any of it touches the live workflow, and
// the code that actually commits a validated batch.
package evolution

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/schema"
)

// Options parameterizes one validation pass. SelfNodeID is the self-reflect
// node proposing the evolution: no mutation may target it or an edge
// touching it, and its immediate neighbors may not be removed, to keep a
// reflection node from rewiring or deleting itself mid-run.
type Options struct {
	MaxMutations int
	Scope        []string
	SelfNodeID   string
}

// Result is the outcome of validating one candidate Evolution.
type Result struct {
	Valid     bool
	Errors    []*apperrors.Error
	Sanitized domain.Evolution
}

var reservedPathSegments = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// shadow is the working copy the validator mutates as it walks the batch,
// so that mutation N+1 sees the effects of mutation N.
type shadow struct {
	nodes    map[uuid.UUID]shadowNode
	edges    map[uuid.UUID]shadowEdge
	edgeKeys map[string]uuid.UUID
	names    map[string]uuid.UUID
}

type shadowNode struct {
	id     uuid.UUID
	typ    domain.NodeType
	name   string
	config map[string]any
}

type shadowEdge struct {
	id           uuid.UUID
	from, to     uuid.UUID
	edgeType     domain.EdgeType
	sourceHandle string
}

func edgeKey(from, to uuid.UUID, sourceHandle string, edgeType domain.EdgeType) string {
	return fmt.Sprintf("%s|%s|%s|%s", from, to, sourceHandle, edgeType)
}

func newShadow(wf domain.Workflow) *shadow {
	s := &shadow{
		nodes:    make(map[uuid.UUID]shadowNode),
		edges:    make(map[uuid.UUID]shadowEdge),
		edgeKeys: make(map[string]uuid.UUID),
		names:    make(map[string]uuid.UUID),
	}
	for _, n := range wf.GetAllNodes() {
		s.nodes[n.ID()] = shadowNode{id: n.ID(), typ: n.Type(), name: n.Name(), config: n.Config()}
		s.names[n.Name()] = n.ID()
	}
	for _, e := range wf.GetAllEdges() {
		se := shadowEdge{id: e.ID(), from: e.FromNodeID(), to: e.ToNodeID(), edgeType: e.Type(), sourceHandle: e.SourceHandle()}
		s.edges[e.ID()] = se
		s.edgeKeys[edgeKey(se.from, se.to, se.sourceHandle, se.edgeType)] = se.id
	}
	return s
}

// Validate sanitizes and checks candidate against wf and reg, returning the
// subset of mutations that passed every check. A non-empty Errors means the
// whole batch is rejected (Valid=false); the caller must not apply anything
// from Sanitized in that case — it is returned purely for diagnostics.
func Validate(wf domain.Workflow, reg *schema.Registry, candidate domain.Evolution, opts Options) Result {
	var errs []*apperrors.Error
	sanitized := domain.Evolution{
		ID: candidate.ID, NodeID: candidate.NodeID, Mode: candidate.Mode,
		Scope: candidate.Scope, MaxMutations: candidate.MaxMutations,
		Rationale: candidate.Rationale, ProposedAt: candidate.ProposedAt,
	}

	mutations := candidate.Mutations
	if opts.MaxMutations > 0 && len(mutations) > opts.MaxMutations {
		errs = append(errs, apperrors.New(apperrors.CodeTooManyMutations,
			fmt.Sprintf("evolution proposes %d mutations, exceeding the configured maximum of %d", len(mutations), opts.MaxMutations)))
		mutations = mutations[:opts.MaxMutations]
	}

	s := newShadow(wf)
	selfID, _ := uuid.Parse(opts.SelfNodeID)

	for i, op := range mutations {
		if op.Kind == "" {
			continue // not a well-shaped object mutation; drop silently
		}

		scope := scopeOf(op)
		if len(opts.Scope) > 0 && !scopeAllowed(scope, opts.Scope) {
			errs = append(errs, apperrors.New(apperrors.CodeScopeViolation,
				fmt.Sprintf("mutation %d (%s) is scoped %q, outside the allowed set %v", i, op.Kind, scope, opts.Scope)))
			continue
		}

		if err := checkOp(s, reg, op, selfID); err != nil {
			errs = append(errs, err)
			continue
		}

		applyToShadow(s, op)
		sanitized.Mutations = append(sanitized.Mutations, op)
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Sanitized: sanitized}
}

// scopeOf derives a mutation's scope bucket: "models", "prompts", or
// "structure". update-node-config is classified by its root path segment.
func scopeOf(op domain.MutationOp) string {
	switch op.Kind {
	case domain.MutationUpdateModel:
		return "models"
	case domain.MutationUpdatePrompt:
		return "prompts"
	case domain.MutationUpdateNodeConfig:
		root := rootSegment(op.Path)
		switch root {
		case "model":
			return "models"
		case "userQuery", "systemPrompt", "instructions", "promptMessage", "prompt":
			return "prompts"
		default:
			return "structure"
		}
	default:
		return "structure"
	}
}

func scopeAllowed(scope string, allowed []string) bool {
	for _, a := range allowed {
		if a == scope {
			return true
		}
	}
	return false
}

func rootSegment(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}


func checkOp(s *shadow, reg *schema.Registry, op domain.MutationOp, selfID uuid.UUID) *apperrors.Error {
	switch op.Kind {
	case domain.MutationUpdateNodeConfig:
		return checkUpdateNodeConfig(s, reg, op, selfID)
	case domain.MutationUpdatePrompt:
		return checkUpdatePrompt(s, reg, op, selfID)
	case domain.MutationUpdateModel:
		return checkUpdateModel(s, reg, op, selfID)
	case domain.MutationAddNode:
		return checkAddNode(s, reg, op)
	case domain.MutationRemoveNode:
		return checkRemoveNode(s, reg, op, selfID)
	case domain.MutationAddEdge:
		return checkAddEdge(s, op, selfID)
	case domain.MutationRemoveEdge:
		return checkRemoveEdge(s, op, selfID)
	case domain.MutationUpdateWorkflowSetting:
		return checkUpdateWorkflowSetting(op)
	default:
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unknown mutation kind %q", op.Kind))
	}
}

func parseNodeID(raw string) (uuid.UUID, *apperrors.Error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("%q is not a valid node id", raw), err)
	}
	return id, nil
}

func checkNotSelf(id, selfID uuid.UUID) *apperrors.Error {
	if selfID != uuid.Nil && id == selfID {
		return apperrors.New(apperrors.CodeSelfMutationForbidden, "mutation targets the self-reflect node proposing it")
	}
	return nil
}

func checkReservedPath(path string) *apperrors.Error {
	for _, seg := range schema.SplitPath(path) {
		if reservedPathSegments[seg] {
			return apperrors.New(apperrors.CodeReservedPath, fmt.Sprintf("path segment %q is reserved", seg))
		}
	}
	return nil
}

func checkUpdateNodeConfig(s *shadow, reg *schema.Registry, op domain.MutationOp, selfID uuid.UUID) *apperrors.Error {
	nodeID, perr := parseNodeID(op.NodeID)
	if perr != nil {
		return perr
	}
	n, ok := s.nodes[nodeID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("node %s not found", op.NodeID))
	}
	if err := checkNotSelf(nodeID, selfID); err != nil {
		return err
	}
	if err := checkReservedPath(op.Path); err != nil {
		return err
	}

	sch, ok := reg.Get(n.typ)
	if !ok {
		return apperrors.New(apperrors.CodeSchemaMismatch, fmt.Sprintf("node type %q has no registered schema", n.typ))
	}
	root := rootSegment(op.Path)
	if root == "name" {
		newName, _ := op.Value.(string)
		if newName == "" {
			return apperrors.New(apperrors.CodeInvalidInput, "name must be a non-empty string")
		}
		if existing, exists := s.names[newName]; exists && existing != nodeID {
			return apperrors.New(apperrors.CodeDuplicateName, fmt.Sprintf("node name %q already in use", newName))
		}
		return nil
	}

	prop, err := sch.ResolvePath(schema.SplitPath(op.Path))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeSchemaMismatch,
			fmt.Sprintf("node type %q: path %q does not resolve within the schema", n.typ, op.Path), err)
	}
	return checkValueType(prop, op.Value)
}

func checkValueType(prop schema.Property, value any) *apperrors.Error {
	switch prop.Type {
	case schema.PropertyBoolean:
		if _, ok := value.(bool); !ok {
			return apperrors.New(apperrors.CodeInvalidType, fmt.Sprintf("property %q expects a boolean", prop.Name))
		}
	case schema.PropertyNumber:
		switch value.(type) {
		case float64, int, int64:
		default:
			return apperrors.New(apperrors.CodeInvalidType, fmt.Sprintf("property %q expects a number", prop.Name))
		}
	case schema.PropertySelect:
		str, ok := value.(string)
		if !ok || !contains(prop.Options, str) {
			return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("property %q value %v is not one of %v", prop.Name, value, prop.Options))
		}
	case schema.PropertyMultiSelect:
		items, ok := toStringSlice(value)
		if !ok {
			return apperrors.New(apperrors.CodeInvalidType, fmt.Sprintf("property %q expects an array of strings", prop.Name))
		}
		for _, it := range items {
			if !contains(prop.Options, it) {
				return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("property %q value %q is not one of %v", prop.Name, it, prop.Options))
			}
		}
	case schema.PropertyString, schema.PropertyTextarea, schema.PropertyCode, schema.PropertyReference:
		if _, ok := value.(string); !ok {
			return apperrors.New(apperrors.CodeInvalidType, fmt.Sprintf("property %q expects a string", prop.Name))
		}
	default:
		// group/array/conditionRules/inputSelector/mcp-server-selector/
		// schemaBuilder: structurally complex, accept any object/array shape.
	}
	return nil
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func toStringSlice(v any) ([]string, bool) {
	switch raw := v.(type) {
	case []string:
		return raw, true
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func checkUpdatePrompt(s *shadow, reg *schema.Registry, op domain.MutationOp, selfID uuid.UUID) *apperrors.Error {
	nodeID, perr := parseNodeID(op.NodeID)
	if perr != nil {
		return perr
	}
	n, ok := s.nodes[nodeID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("node %s not found", op.NodeID))
	}
	if err := checkNotSelf(nodeID, selfID); err != nil {
		return err
	}
	sch, ok := reg.Get(n.typ)
	if !ok {
		return apperrors.New(apperrors.CodeSchemaMismatch, fmt.Sprintf("node type %q has no registered schema", n.typ))
	}
	prop, ok := sch.FindProperty(op.Path)
	if !ok {
		return apperrors.New(apperrors.CodeSchemaMismatch, fmt.Sprintf("node type %q has no property %q", n.typ, op.Path))
	}
	switch prop.Type {
	case schema.PropertyString, schema.PropertyTextarea, schema.PropertyCode, schema.PropertyReference:
	default:
		return apperrors.New(apperrors.CodeInvalidType, fmt.Sprintf("property %q is not text-typed", prop.Name))
	}
	if _, ok := op.Value.(string); !ok {
		return apperrors.New(apperrors.CodeInvalidType, "new value must be a string")
	}
	return nil
}

func checkUpdateModel(s *shadow, reg *schema.Registry, op domain.MutationOp, selfID uuid.UUID) *apperrors.Error {
	nodeID, perr := parseNodeID(op.NodeID)
	if perr != nil {
		return perr
	}
	n, ok := s.nodes[nodeID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("node %s not found", op.NodeID))
	}
	if err := checkNotSelf(nodeID, selfID); err != nil {
		return err
	}
	sch, ok := reg.Get(n.typ)
	if !ok {
		return apperrors.New(apperrors.CodeSchemaMismatch, fmt.Sprintf("node type %q has no registered schema", n.typ))
	}
	prop, ok := sch.FindProperty("model")
	if !ok {
		return apperrors.New(apperrors.CodeSchemaMismatch, fmt.Sprintf("node type %q does not define a model property", n.typ))
	}
	if !contains(prop.Options, op.NewModel) {
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("model %q is not one of %v", op.NewModel, prop.Options))
	}
	return nil
}

func checkAddNode(s *shadow, reg *schema.Registry, op domain.MutationOp) *apperrors.Error {
	newID, perr := parseNodeID(op.NewNodeID)
	if perr != nil {
		return perr
	}
	if _, exists := s.nodes[newID]; exists {
		return apperrors.New(apperrors.CodeAlreadyExists, fmt.Sprintf("node id %s already exists", op.NewNodeID))
	}
	if op.NodeName == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "new node requires a name")
	}
	if _, exists := s.names[op.NodeName]; exists {
		return apperrors.New(apperrors.CodeDuplicateName, fmt.Sprintf("node name %q already in use", op.NodeName))
	}
	if math.IsNaN(op.Position.X) || math.IsInf(op.Position.X, 0) || math.IsNaN(op.Position.Y) || math.IsInf(op.Position.Y, 0) {
		return apperrors.New(apperrors.CodeInvalidInput, "node position must be finite")
	}
	if !op.NodeType.IsValid() {
		return apperrors.New(apperrors.CodeInvalidType, fmt.Sprintf("invalid node type %q", op.NodeType))
	}
	if _, ok := reg.Get(op.NodeType); !ok {
		return apperrors.New(apperrors.CodeSchemaMismatch, fmt.Sprintf("node type %q has no registered schema", op.NodeType))
	}

	// Validate optional auto-wiring edges against the post-insert graph.
	if op.ConnectFromNodeID != "" {
		fromID, perr := parseNodeID(op.ConnectFromNodeID)
		if perr != nil {
			return perr
		}
		if _, ok := s.nodes[fromID]; !ok {
			return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("connectFrom node %s not found", op.ConnectFromNodeID))
		}
		if _, exists := s.edgeKeys[edgeKey(fromID, newID, "", domain.EdgeTypeDirect)]; exists {
			return apperrors.New(apperrors.CodeAlreadyExists, "connectFrom edge collides with an existing edge")
		}
	}
	if op.ConnectToNodeID != "" {
		toID, perr := parseNodeID(op.ConnectToNodeID)
		if perr != nil {
			return perr
		}
		if _, ok := s.nodes[toID]; !ok {
			return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("connectTo node %s not found", op.ConnectToNodeID))
		}
		if _, exists := s.edgeKeys[edgeKey(newID, toID, "", domain.EdgeTypeDirect)]; exists {
			return apperrors.New(apperrors.CodeAlreadyExists, "connectTo edge collides with an existing edge")
		}
	}

	return checkNoCycleAfterAddNode(s, op)
}

// checkNoCycleAfterAddNode simulates inserting the new node plus its
// optional auto-wired edges and runs a three-color DFS over the result.
func checkNoCycleAfterAddNode(s *shadow, op domain.MutationOp) *apperrors.Error {
	newID, _ := uuid.Parse(op.NewNodeID)
	adj := adjacency(s)
	if op.ConnectFromNodeID != "" {
		fromID, _ := uuid.Parse(op.ConnectFromNodeID)
		adj[fromID] = append(adj[fromID], newID)
	}
	if op.ConnectToNodeID != "" {
		toID, _ := uuid.Parse(op.ConnectToNodeID)
		adj[newID] = append(adj[newID], toID)
	}
	nodeIDs := make([]uuid.UUID, 0, len(s.nodes)+1)
	for id := range s.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	nodeIDs = append(nodeIDs, newID)
	if hasCycle(adj, nodeIDs) {
		return apperrors.New(apperrors.CodeCyclicDependency, "adding this node would introduce a cycle")
	}
	return nil
}

func checkRemoveNode(s *shadow, reg *schema.Registry, op domain.MutationOp, selfID uuid.UUID) *apperrors.Error {
	nodeID, perr := parseNodeID(op.NodeID)
	if perr != nil {
		return perr
	}
	n, ok := s.nodes[nodeID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("node %s not found", op.NodeID))
	}
	if n.typ == domain.NodeTypeInput || n.typ == domain.NodeTypeOutput {
		return apperrors.New(apperrors.CodeNotDeletable, "input/output nodes cannot be removed")
	}
	if err := checkNotSelf(nodeID, selfID); err != nil {
		return err
	}
	sch, ok := reg.Get(n.typ)
	if !ok || !sch.Deletable {
		return apperrors.New(apperrors.CodeNotDeletable, fmt.Sprintf("node type %q is not deletable", n.typ))
	}
	if selfID != uuid.Nil && isNeighbor(s, selfID, nodeID) {
		return apperrors.New(apperrors.CodeSelfMutationForbidden, "cannot remove a direct neighbor of the self-reflect node")
	}
	return nil
}

func isNeighbor(s *shadow, a, b uuid.UUID) bool {
	for _, e := range s.edges {
		if (e.from == a && e.to == b) || (e.from == b && e.to == a) {
			return true
		}
	}
	return false
}

func checkAddEdge(s *shadow, op domain.MutationOp, selfID uuid.UUID) *apperrors.Error {
	edgeID, perr := parseNodeID(op.EdgeID)
	if perr != nil {
		return perr
	}
	fromID, perr := parseNodeID(op.FromNodeID)
	if perr != nil {
		return perr
	}
	toID, perr := parseNodeID(op.ToNodeID)
	if perr != nil {
		return perr
	}
	if _, exists := s.edges[edgeID]; exists {
		return apperrors.New(apperrors.CodeAlreadyExists, fmt.Sprintf("edge id %s already exists", op.EdgeID))
	}
	if _, ok := s.nodes[fromID]; !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("source node %s not found", op.FromNodeID))
	}
	if _, ok := s.nodes[toID]; !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("destination node %s not found", op.ToNodeID))
	}
	if selfID != uuid.Nil && (fromID == selfID || toID == selfID) {
		return apperrors.New(apperrors.CodeSelfMutationForbidden, "edge endpoints must exclude the self-reflect node")
	}
	if !op.EdgeType.IsValid() {
		return apperrors.New(apperrors.CodeInvalidType, fmt.Sprintf("invalid edge type %q", op.EdgeType))
	}
	if _, exists := s.edgeKeys[edgeKey(fromID, toID, op.SourceHandle, op.EdgeType)]; exists {
		return apperrors.New(apperrors.CodeAlreadyExists, "an identical edge already exists")
	}

	adj := adjacency(s)
	adj[fromID] = append(adj[fromID], toID)
	nodeIDs := make([]uuid.UUID, 0, len(s.nodes))
	for id := range s.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	if hasCycle(adj, nodeIDs) {
		return apperrors.New(apperrors.CodeCyclicDependency, "adding this edge would introduce a cycle")
	}
	return nil
}

func checkRemoveEdge(s *shadow, op domain.MutationOp, selfID uuid.UUID) *apperrors.Error {
	edgeID, perr := parseNodeID(op.EdgeID)
	if perr != nil {
		return perr
	}
	e, ok := s.edges[edgeID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("edge %s not found", op.EdgeID))
	}
	if selfID != uuid.Nil && (e.from == selfID || e.to == selfID) {
		return apperrors.New(apperrors.CodeSelfMutationForbidden, "cannot remove an edge touching the self-reflect node")
	}
	return nil
}

func checkUpdateWorkflowSetting(op domain.MutationOp) *apperrors.Error {
	switch op.SettingKey {
	case "name", "description", "workingDirectory":
	default:
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unsupported workflow setting %q", op.SettingKey))
	}
	if _, ok := op.SettingValue.(string); !ok {
		return apperrors.New(apperrors.CodeInvalidType, "workflow setting value must be a string")
	}
	return nil
}

func adjacency(s *shadow) map[uuid.UUID][]uuid.UUID {
	adj := make(map[uuid.UUID][]uuid.UUID, len(s.edges))
	for _, e := range s.edges {
		adj[e.from] = append(adj[e.from], e.to)
	}
	return adj
}

// hasCycle runs a three-color (white/gray/black) DFS over adj restricted to
// nodeIDs, reporting whether any cycle exists.
func hasCycle(adj map[uuid.UUID][]uuid.UUID, nodeIDs []uuid.UUID) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uuid.UUID]int, len(nodeIDs))
	for _, id := range nodeIDs {
		color[id] = white
	}

	var visit func(id uuid.UUID) bool
	visit = func(id uuid.UUID) bool {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range nodeIDs {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// applyToShadow mutates the shadow copy to reflect op, so that subsequent
// mutations in the same batch are validated against the post-op state.
func applyToShadow(s *shadow, op domain.MutationOp) {
	switch op.Kind {
	case domain.MutationUpdateNodeConfig:
		nodeID, _ := uuid.Parse(op.NodeID)
		n := s.nodes[nodeID]
		if rootSegment(op.Path) == "name" {
			newName, _ := op.Value.(string)
			delete(s.names, n.name)
			n.name = newName
			s.names[newName] = nodeID
		} else {
			cfg := make(map[string]any, len(n.config)+1)
			for k, v := range n.config {
				cfg[k] = v
			}
			cfg[rootSegment(op.Path)] = op.Value
			n.config = cfg
		}
		s.nodes[nodeID] = n

	case domain.MutationUpdatePrompt:
		nodeID, _ := uuid.Parse(op.NodeID)
		n := s.nodes[nodeID]
		cfg := make(map[string]any, len(n.config)+1)
		for k, v := range n.config {
			cfg[k] = v
		}
		cfg[op.Path] = op.Value
		n.config = cfg
		s.nodes[nodeID] = n

	case domain.MutationUpdateModel:
		nodeID, _ := uuid.Parse(op.NodeID)
		n := s.nodes[nodeID]
		cfg := make(map[string]any, len(n.config)+1)
		for k, v := range n.config {
			cfg[k] = v
		}
		cfg["model"] = op.NewModel
		n.config = cfg
		s.nodes[nodeID] = n

	case domain.MutationAddNode:
		newID, _ := uuid.Parse(op.NewNodeID)
		s.nodes[newID] = shadowNode{id: newID, typ: op.NodeType, name: op.NodeName, config: op.Config}
		s.names[op.NodeName] = newID
		if op.ConnectFromNodeID != "" {
			fromID, _ := uuid.Parse(op.ConnectFromNodeID)
			addShadowEdge(s, uuid.New(), fromID, newID, domain.EdgeTypeDirect, "")
		}
		if op.ConnectToNodeID != "" {
			toID, _ := uuid.Parse(op.ConnectToNodeID)
			addShadowEdge(s, uuid.New(), newID, toID, domain.EdgeTypeDirect, "")
		}

	case domain.MutationRemoveNode:
		nodeID, _ := uuid.Parse(op.NodeID)
		if n, ok := s.nodes[nodeID]; ok {
			delete(s.names, n.name)
		}
		delete(s.nodes, nodeID)
		for id, e := range s.edges {
			if e.from == nodeID || e.to == nodeID {
				delete(s.edgeKeys, edgeKey(e.from, e.to, e.sourceHandle, e.edgeType))
				delete(s.edges, id)
			}
		}

	case domain.MutationAddEdge:
		edgeID, _ := uuid.Parse(op.EdgeID)
		fromID, _ := uuid.Parse(op.FromNodeID)
		toID, _ := uuid.Parse(op.ToNodeID)
		addShadowEdge(s, edgeID, fromID, toID, op.EdgeType, op.SourceHandle)

	case domain.MutationRemoveEdge:
		edgeID, _ := uuid.Parse(op.EdgeID)
		if e, ok := s.edges[edgeID]; ok {
			delete(s.edgeKeys, edgeKey(e.from, e.to, e.sourceHandle, e.edgeType))
		}
		delete(s.edges, edgeID)

	case domain.MutationUpdateWorkflowSetting:
		// No shadow graph state to update; applier handles it directly.
	}
}

func addShadowEdge(s *shadow, id, from, to uuid.UUID, edgeType domain.EdgeType, sourceHandle string) {
	se := shadowEdge{id: id, from: from, to: to, edgeType: edgeType, sourceHandle: sourceHandle}
	s.edges[id] = se
	s.edgeKeys[edgeKey(from, to, sourceHandle, edgeType)] = id
}

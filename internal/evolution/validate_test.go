package evolution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/schema"
)

func testWorkflow(t *testing.T) (domain.Workflow, uuid.UUID, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	wf, err := domain.NewWorkflow("reflective", "1", "", nil)
	require.NoError(t, err)

	inID, err := wf.AddNode(domain.NodeTypeInput, "Input", nil, domain.Position{})
	require.NoError(t, err)
	agentID, err := wf.AddNode(domain.NodeTypeClaudeAgent, "Agent", map[string]any{
		"model": "sonnet", "userQuery": "{{Input.value}}",
	}, domain.Position{})
	require.NoError(t, err)
	outID, err := wf.AddNode(domain.NodeTypeOutput, "Output", map[string]any{"source": "{{Agent.text}}"}, domain.Position{})
	require.NoError(t, err)
	selfID, err := wf.AddNode(domain.NodeTypeSelfReflect, "Reflect", map[string]any{
		"mode": "dry-run", "instructions": "improve the workflow",
	}, domain.Position{})
	require.NoError(t, err)

	_, err = wf.AddEdge(inID, agentID, domain.EdgeTypeDirect, nil, "")
	require.NoError(t, err)
	_, err = wf.AddEdge(agentID, outID, domain.EdgeTypeDirect, nil, "")
	require.NoError(t, err)

	return wf, inID, agentID, outID, selfID
}

func TestValidate_UpdateModel_Valid(t *testing.T) {
	wf, _, agentID, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mode:   domain.EvolutionModeDryRun,
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateModel, NodeID: agentID.String(), NewModel: "opus"},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Sanitized.Mutations, 1)
}

func TestValidate_UpdateModel_RejectsUnknownOption(t *testing.T) {
	wf, _, agentID, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateModel, NodeID: agentID.String(), NewModel: "not-a-model"},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "INVALID_INPUT", string(result.Errors[0].Code))
}

func TestValidate_SelfMutationForbidden(t *testing.T) {
	wf, _, _, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationRemoveNode, NodeID: selfID.String()},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "SELF_MUTATION_FORBIDDEN", string(result.Errors[0].Code))
}

func TestValidate_RemoveNode_RejectsNonDeletable(t *testing.T) {
	wf, inID, _, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationRemoveNode, NodeID: inID.String()},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "NOT_DELETABLE", string(result.Errors[0].Code))
}

func TestValidate_AddEdge_RejectsCycle(t *testing.T) {
	wf, inID, agentID, outID, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationAddEdge, EdgeID: uuid.New().String(), FromNodeID: outID.String(), ToNodeID: agentID.String(), EdgeType: domain.EdgeTypeDirect},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "CYCLIC_DEPENDENCY", string(result.Errors[0].Code))

	_ = inID
}

func TestValidate_MaxMutations(t *testing.T) {
	wf, _, agentID, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateModel, NodeID: agentID.String(), NewModel: "opus"},
			{Kind: domain.MutationUpdateModel, NodeID: agentID.String(), NewModel: "haiku"},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String(), MaxMutations: 1})
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "TOO_MANY_MUTATIONS", string(result.Errors[0].Code))
}

func TestValidate_ScopeViolation(t *testing.T) {
	wf, _, agentID, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateModel, NodeID: agentID.String(), NewModel: "opus"},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String(), Scope: []string{"structure"}})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "SCOPE_VIOLATION", string(result.Errors[0].Code))
}

func TestValidate_AddNode_Valid(t *testing.T) {
	wf, _, agentID, outID, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	newID := uuid.New()
	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{
				Kind: domain.MutationAddNode, NewNodeID: newID.String(), NodeType: domain.NodeTypeMerge,
				NodeName: "Gate", Config: map[string]any{"strategy": "wait-all"},
				ConnectFromNodeID: agentID.String(), ConnectToNodeID: outID.String(),
			},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_UpdateWorkflowSetting(t *testing.T) {
	wf, _, _, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateWorkflowSetting, SettingKey: "description", SettingValue: "updated by self-reflect"},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.True(t, result.Valid)
}

func TestValidate_UpdateWorkflowSetting_RejectsUnknownField(t *testing.T) {
	wf, _, _, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateWorkflowSetting, SettingKey: "owner", SettingValue: "someone"},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.False(t, result.Valid)
}

func TestValidate_ReservedPath(t *testing.T) {
	wf, _, agentID, _, selfID := testWorkflow(t)
	reg := schema.MustDefaultRegistry()

	evo := domain.Evolution{
		NodeID: selfID.String(),
		Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateNodeConfig, NodeID: agentID.String(), Path: "__proto__.polluted", Value: true},
		},
	}

	result := Validate(wf, reg, evo, Options{SelfNodeID: selfID.String()})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "RESERVED_PATH", string(result.Errors[0].Code))
}

// nestedRegistry registers a bash schema with a group and an array property
// so update-node-config paths can descend below the root segment.
func nestedRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	schemas := schema.Default()
	for i, s := range schemas {
		if s.Type != domain.NodeTypeBash {
			continue
		}
		schemas[i].Properties = append(s.Properties,
			schema.Property{Name: "retry", Type: schema.PropertyGroup, Properties: []schema.Property{
				{Name: "maxAttempts", Type: schema.PropertyNumber},
			}},
			schema.Property{Name: "mounts", Type: schema.PropertyArray, Properties: []schema.Property{
				{Name: "path", Type: schema.PropertyString},
			}},
		)
	}
	reg, err := schema.NewRegistry(schemas)
	require.NoError(t, err)
	return reg
}

func TestValidate_UpdateNodeConfig_NestedGroupPath(t *testing.T) {
	wf, _, _, _, _ := testWorkflow(t)
	bashID, err := wf.AddNode(domain.NodeTypeBash, "Shell", map[string]any{"script": "true"}, domain.Position{})
	require.NoError(t, err)
	reg := nestedRegistry(t)

	result := Validate(wf, reg, domain.Evolution{Mutations: []domain.MutationOp{
		{Kind: domain.MutationUpdateNodeConfig, NodeID: bashID.String(), Path: "retry.maxAttempts", Value: float64(3)},
	}}, Options{})
	assert.True(t, result.Valid, "errors: %v", result.Errors)

	result = Validate(wf, reg, domain.Evolution{Mutations: []domain.MutationOp{
		{Kind: domain.MutationUpdateNodeConfig, NodeID: bashID.String(), Path: "retry.maxAttempts", Value: "three"},
	}}, Options{})
	assert.False(t, result.Valid, "a string into a number property must be rejected")
}

func TestValidate_UpdateNodeConfig_NestedArrayPath(t *testing.T) {
	wf, _, _, _, _ := testWorkflow(t)
	bashID, err := wf.AddNode(domain.NodeTypeBash, "Shell", map[string]any{"script": "true"}, domain.Position{})
	require.NoError(t, err)
	reg := nestedRegistry(t)

	result := Validate(wf, reg, domain.Evolution{Mutations: []domain.MutationOp{
		{Kind: domain.MutationUpdateNodeConfig, NodeID: bashID.String(), Path: "mounts[0].path", Value: "/tmp"},
	}}, Options{})
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidate_UpdateNodeConfig_PathOutsideSchema(t *testing.T) {
	wf, _, _, _, _ := testWorkflow(t)
	bashID, err := wf.AddNode(domain.NodeTypeBash, "Shell", map[string]any{"script": "true"}, domain.Position{})
	require.NoError(t, err)
	reg := nestedRegistry(t)

	for _, path := range []string{"retry.nope", "script.deeper", "mounts.path", "nosuch"} {
		result := Validate(wf, reg, domain.Evolution{Mutations: []domain.MutationOp{
			{Kind: domain.MutationUpdateNodeConfig, NodeID: bashID.String(), Path: path, Value: "x"},
		}}, Options{})
		require.False(t, result.Valid, "path %q must not resolve", path)
		assert.Equal(t, apperrors.CodeSchemaMismatch, result.Errors[0].Code)
	}
}

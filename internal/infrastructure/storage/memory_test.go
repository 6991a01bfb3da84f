package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/agentflow/internal/domain"
)

func TestMemoryStore_WorkflowsAndExecutions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	wf, err := domain.NewWorkflow("demo", "1", "test workflow", nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveWorkflow(ctx, wf))

	got, err := s.GetWorkflow(ctx, wf.ID())
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name())

	byName, err := s.GetWorkflowByName(ctx, "demo", "1")
	require.NoError(t, err)
	assert.Equal(t, wf.ID(), byName.ID())

	execID := uuid.New()
	startEvent := domain.NewEvent(domain.EventTypeExecutionStarted, execID, 1, wf.ID(), uuid.Nil,
		map[string]any{"trigger_id": uuid.Nil.String()}, nil)
	require.NoError(t, s.AppendEvent(ctx, startEvent))

	exec, err := s.GetExecution(ctx, execID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID(), exec.WorkflowID())

	events, err := s.GetEvents(ctx, execID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	count, err := s.GetEventCount(ctx, execID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	byWorkflow, err := s.ListExecutionsByWorkflow(ctx, wf.ID())
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)
}

func TestMemoryStore_DeleteWorkflow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	wf, err := domain.NewWorkflow("to-delete", "1", "", nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveWorkflow(ctx, wf))

	require.NoError(t, s.DeleteWorkflow(ctx, wf.ID()))

	exists, err := s.WorkflowExists(ctx, wf.ID())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore_EventOrderingAndSince(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	wf, err := domain.NewWorkflow("ordered", "1", "", nil)
	require.NoError(t, err)
	execID := uuid.New()

	for seq := int64(1); seq <= 3; seq++ {
		ev := domain.NewEvent(domain.EventTypeNodeCompleted, execID, seq, wf.ID(), uuid.New(), nil, nil)
		require.NoError(t, s.AppendEvent(ctx, ev))
	}

	since, err := s.GetEventsSince(ctx, execID, 1)
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

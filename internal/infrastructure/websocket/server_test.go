package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/infrastructure/monitoring"
)

func TestStartExecutionRecordsMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	collector := monitoring.NewMetricsCollector()
	srv.Metrics = collector

	wf, err := domain.NewWorkflow("metrics-wf", "1", "", nil)
	require.NoError(t, err)
	inID, err := wf.AddNode(domain.NodeTypeInput, "In", map[string]any{"name": "in"}, domain.Position{})
	require.NoError(t, err)
	outID, err := wf.AddNode(domain.NodeTypeOutput, "Out", map[string]any{"name": "out", "source": "{{In.value}}"}, domain.Position{})
	require.NoError(t, err)
	_, err = wf.AddEdge(inID, outID, domain.EdgeTypeDirect, nil, "")
	require.NoError(t, err)
	require.NoError(t, srv.Storage.SaveWorkflow(context.Background(), wf))

	_, err = srv.StartExecution(context.Background(), wf.ID().String(), "hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return collector.GetSummary().TotalExecutions > 0
	}, 2*time.Second, 10*time.Millisecond)
}

// TestReplayExecutionSeedsFromSource runs a workflow once, then replays it
// from the output node: the input's recorded output seeds the new run, so
// the replay completes without re-reading any live input.
func TestReplayExecutionSeedsFromSource(t *testing.T) {
	srv, _ := newTestServer(t)

	wf, err := domain.NewWorkflow("replay-wf", "1", "", nil)
	require.NoError(t, err)
	inID, err := wf.AddNode(domain.NodeTypeInput, "In", map[string]any{"name": "in"}, domain.Position{})
	require.NoError(t, err)
	outID, err := wf.AddNode(domain.NodeTypeOutput, "Out", map[string]any{"name": "out", "source": "{{In.value}}"}, domain.Position{})
	require.NoError(t, err)
	_, err = wf.AddEdge(inID, outID, domain.EdgeTypeDirect, nil, "")
	require.NoError(t, err)
	require.NoError(t, srv.Storage.SaveWorkflow(context.Background(), wf))

	srcID, err := srv.StartExecution(context.Background(), wf.ID().String(), "hello")
	require.NoError(t, err)

	// The source run's journal is persisted once the launch goroutine
	// finishes; the replay plan reads it from storage.
	srcUUID := uuid.MustParse(srcID)
	require.Eventually(t, func() bool {
		exec, err := srv.Storage.GetExecution(context.Background(), srcUUID)
		return err == nil && exec.Phase() == domain.ExecutionPhaseCompleted
	}, 2*time.Second, 10*time.Millisecond)

	replayID, err := srv.ReplayExecution(context.Background(), wf.ID().String(), srcID, outID.String())
	require.NoError(t, err)
	require.NotEqual(t, srcID, replayID)

	replayUUID := uuid.MustParse(replayID)
	require.Eventually(t, func() bool {
		exec, err := srv.Storage.GetExecution(context.Background(), replayUUID)
		if err != nil {
			return false
		}
		if exec.Phase() != domain.ExecutionPhaseCompleted {
			return false
		}
		out, ok := exec.GetNodeOutput(outID)
		if !ok {
			return false
		}
		v, _ := out.Get("value")
		return v == "hello"
	}, 2*time.Second, 10*time.Millisecond)
}

package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/infrastructure/storage"
)

type recordingStarter struct {
	mu    sync.Mutex
	calls []string // workflowID|input
}

func (r *recordingStarter) StartExecution(ctx context.Context, workflowID, input string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, workflowID+"|"+input)
	return "exec-1", nil
}

func (r *recordingStarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestCronSchedulerFiresScheduleTrigger(t *testing.T) {
	store := storage.NewMemoryStore()
	wf, err := domain.NewWorkflow("cron-wf", "1", "", nil)
	require.NoError(t, err)
	_, err = wf.AddTrigger(domain.TriggerTypeSchedule, map[string]any{
		"schedule": "* * * * * *", // every second (seconds-aware)
		"input":    "scheduled",
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveWorkflow(context.Background(), wf))

	starter := &recordingStarter{}
	sched := NewCronScheduler(store, starter)
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	require.Eventually(t, func() bool { return starter.count() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestCronSchedulerRejectsBadExpression(t *testing.T) {
	store := storage.NewMemoryStore()
	wf, err := domain.NewWorkflow("bad-wf", "1", "", nil)
	require.NoError(t, err)
	_, err = wf.AddTrigger(domain.TriggerTypeSchedule, map[string]any{"schedule": "not a cron expr"})
	require.NoError(t, err)
	require.NoError(t, store.SaveWorkflow(context.Background(), wf))

	sched := NewCronScheduler(store, &recordingStarter{})
	// Start tolerates a single bad trigger (skips it and continues); the point
	// under test is that it doesn't register an entry for it.
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()
	require.Empty(t, sched.entries)
}

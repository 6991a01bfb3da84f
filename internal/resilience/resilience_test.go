package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          50 * time.Millisecond,
	})

	failing := errors.New("boom")
	assert.Equal(t, failing, cb.Execute(func() error { return failing }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, failing, cb.Execute(func() error { return failing }))
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { t.Fatal("fn must not run while open"); return nil })
	var openErr *CircuitBreakerOpenError
	require.ErrorAs(t, err, &openErr)
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})
	_ = cb.Execute(func() error { return errors.New("fail") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

type countingExecutor struct {
	failTimes int
	calls     int
}

func (e *countingExecutor) Validate(domain.Node) error { return nil }

func (e *countingExecutor) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	e.calls++
	if e.calls <= e.failTimes {
		return node.Output{}, errors.New("transient failure")
	}
	return node.Output{Data: "ok"}, nil
}

func testNode() domain.Node {
	return domain.NewNode(uuid.New(), domain.NodeTypeBash, "N", map[string]any{
		"maxRetries": 2,
		"retryDelay": "1ms",
	}, domain.Position{})
}

func TestRetryingExecutorRecoversAfterTransientFailures(t *testing.T) {
	inner := &countingExecutor{failTimes: 2}
	exec := NewRetryingExecutor(inner, NewRegistry(DefaultCircuitBreakerConfig()))
	n := testNode()

	out, err := exec.Execute(context.Background(), node.Input{
		Node:   n,
		Config: n.Config(),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Data)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingExecutorExhaustsAttempts(t *testing.T) {
	inner := &countingExecutor{failTimes: 100}
	exec := NewRetryingExecutor(inner, NewRegistry(DefaultCircuitBreakerConfig()))
	n := testNode()

	_, err := exec.Execute(context.Background(), node.Input{
		Node:   n,
		Config: n.Config(),
	})
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls) // initial attempt + 2 retries
}

func TestRetryingExecutorStopsOnOpenCircuit(t *testing.T) {
	breakers := NewRegistry(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})
	inner := &countingExecutor{failTimes: 100}
	exec := NewRetryingExecutor(inner, breakers)
	n := domain.NewNode(uuid.New(), domain.NodeTypeBash, "N", map[string]any{"maxRetries": 5, "retryDelay": "1ms"}, domain.Position{})

	_, err := exec.Execute(context.Background(), node.Input{Node: n, Config: n.Config()})
	require.Error(t, err)
	firstCalls := inner.calls

	_, err = exec.Execute(context.Background(), node.Input{Node: n, Config: n.Config()})
	require.Error(t, err)
	var openErr *CircuitBreakerOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, firstCalls, inner.calls, "circuit should short-circuit without invoking the inner executor again")
}

package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

// RetryPolicy is exponential backoff with optional jitter, applied before a
// node's terminal error event — distinct from a node's own execution
// timeout, which this policy never extends.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NoRetryPolicy disables retries outright; used when a node config sets
// maxRetries to 0.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 0}
}

// PolicyFromConfig reads the optional maxRetries (int)/retryDelay
// (duration string, e.g. "500ms") keys off a node's config, falling back
// to DefaultRetryPolicy for anything unset or malformed.
func PolicyFromConfig(cfg map[string]any) RetryPolicy {
	policy := DefaultRetryPolicy()
	if n, ok := cfg["maxRetries"].(int); ok {
		policy.MaxAttempts = n
	} else if f, ok := cfg["maxRetries"].(float64); ok {
		policy.MaxAttempts = int(f)
	}
	if s, ok := cfg["retryDelay"].(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			policy.InitialDelay = d
		}
	}
	return policy
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d = d * (0.5 + rand.Float64()*0.5)
	}
	return time.Duration(d)
}

// RetryingExecutor wraps an inner node.Executor with a circuit breaker
// (keyed per node ID, so a loud node never throttles its siblings) and a
// bounded exponential-backoff retry loop. A tripped circuit breaker
// short-circuits every attempt, including the first.
type RetryingExecutor struct {
	inner    node.Executor
	breakers *Registry
	policy   func(cfg map[string]any) RetryPolicy
}

// NewRetryingExecutor wraps inner. breakers is shared across every wrapped
// executor so AGENT_ERROR/AGENT_TIMEOUT bursts against one node type don't
// starve a healthy one.
func NewRetryingExecutor(inner node.Executor, breakers *Registry) *RetryingExecutor {
	return &RetryingExecutor{inner: inner, breakers: breakers, policy: PolicyFromConfig}
}

func (e *RetryingExecutor) Validate(n domain.Node) error { return e.inner.Validate(n) }

func (e *RetryingExecutor) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	policy := e.policy(in.Config)
	cb := e.breakers.Get(in.Node.ID().String())

	var out node.Output
	var lastErr error

	for attempt := 0; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return node.Output{}, ctx.Err()
			case <-time.After(policy.delay(attempt)):
			}
		}

		runErr := cb.Execute(func() error {
			var execErr error
			out, execErr = e.inner.Execute(ctx, in)
			return execErr
		})
		if runErr == nil {
			return out, nil
		}

		if _, open := runErr.(*CircuitBreakerOpenError); open {
			return node.Output{}, runErr
		}
		lastErr = runErr
		if ctx.Err() != nil {
			return node.Output{}, ctx.Err()
		}
	}

	if policy.MaxAttempts == 0 {
		return node.Output{}, lastErr
	}
	return node.Output{}, fmt.Errorf("after %d attempt(s): %w", policy.MaxAttempts+1, lastErr)
}

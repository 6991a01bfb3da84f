// Package monitoring consumes the bus's ExecutionEvent stream for
// observability side effects that are not the engine's concern: structured
// console logging, per-execution metrics aggregation, and an optional HTTP
// webhook callback. None of these may block or mutate engine state; they
// run off a bus.Subscribe channel, not inline in the scheduler.
package monitoring

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/agentflow/internal/bus"
)

// Observer reacts to one ExecutionEvent. Implementations must return
// quickly: a slow Observe blocks the goroutine draining the bus
// subscription, which in turn risks desynchronizing that subscriber (see
// bus.Bus's backpressure-drop behavior).
type Observer interface {
	Observe(ev bus.ExecutionEvent)
}

// Watch subscribes to executionID's journal and feeds every event (replayed
// backlog plus live) to each observer until it has delivered the
// execution's terminal event (execution-complete or execution-error), the
// subscription's channel closes (bus.Close was called) or ctx is done.
// Intended to be run in its own goroutine per execution.
func Watch(ctx context.Context, b *bus.Bus, executionID string, observers ...Observer) {
	sub := b.Subscribe(executionID, nil)
	defer sub.Unsubscribe()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			for _, o := range observers {
				o.Observe(ev)
			}
			// The journal outlives the run for late replay; the watch does
			// not, so stop at the execution's terminal event.
			if ev.Kind == bus.EventExecutionComplete || ev.Kind == bus.EventExecutionError {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ConsoleObserver logs a structured zerolog line per execution event and
// records per-node timing and per-execution success/failure into a
// MetricsCollector so the numbers in Snapshot() reflect real runs rather
// than requiring a caller to instrument the scheduler directly. Execution
// outcomes are recorded with a zero duration, under the terminal event's
// WorkflowID.
type ConsoleObserver struct {
	Logger  zerolog.Logger
	Metrics *MetricsCollector

	nodeStarted map[string]time.Time
}

func NewConsoleObserver(logger zerolog.Logger, metrics *MetricsCollector) *ConsoleObserver {
	return &ConsoleObserver{Logger: logger, Metrics: metrics, nodeStarted: make(map[string]time.Time)}
}

func (o *ConsoleObserver) Observe(ev bus.ExecutionEvent) {
	l := o.Logger.With().
		Str("execution_id", ev.ExecutionID).
		Str("kind", string(ev.Kind)).
		Logger()

	switch ev.Kind {
	case bus.EventExecutionStart:
		l.Info().Str("workflow_id", ev.WorkflowID).Msg("execution started")
	case bus.EventNodeStart:
		o.nodeStarted[ev.NodeID] = ev.Timestamp
		l.Info().Str("node_id", ev.NodeID).Str("node_name", ev.NodeName).Msg("node started")
	case bus.EventNodeComplete:
		dur := o.nodeDuration(ev)
		if o.Metrics != nil {
			o.Metrics.RecordNodeExecution(ev.NodeID, "", ev.NodeName, dur, true, false)
		}
		l.Info().Str("node_id", ev.NodeID).Dur("duration", dur).Msg("node completed")
	case bus.EventNodeError:
		dur := o.nodeDuration(ev)
		if o.Metrics != nil {
			o.Metrics.RecordNodeExecution(ev.NodeID, "", ev.NodeName, dur, false, false)
		}
		l.Warn().Str("node_id", ev.NodeID).Str("error", ev.Error).Msg("node failed")
	case bus.EventNodeWaiting:
		l.Info().Str("node_id", ev.NodeID).Msg("node waiting for approval")
	case bus.EventExecutionComplete:
		if o.Metrics != nil {
			o.Metrics.RecordWorkflowExecution(ev.WorkflowID, 0, true)
		}
		l.Info().Msg("execution completed")
	case bus.EventExecutionError:
		if o.Metrics != nil {
			o.Metrics.RecordWorkflowExecution(ev.WorkflowID, 0, false)
		}
		l.Error().Str("error", ev.Error).Msg("execution failed")
	case bus.EventValidationError:
		l.Warn().Int("error_count", len(ev.ValidationErrors)).Msg("workflow failed pre-flight validation")
	case bus.EventNodeEvolution:
		l.Info().Str("node_id", ev.NodeID).Bool("applied", ev.Applied).Bool("approval_requested", ev.ApprovalRequested).Msg("evolution proposed")
	default:
		l.Debug().Msg("execution event")
	}
}

func (o *ConsoleObserver) nodeDuration(ev bus.ExecutionEvent) time.Duration {
	started, ok := o.nodeStarted[ev.NodeID]
	if !ok {
		return 0
	}
	delete(o.nodeStarted, ev.NodeID)
	return ev.Timestamp.Sub(started)
}

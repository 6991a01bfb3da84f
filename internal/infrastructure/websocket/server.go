package websocket

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smilemakc/agentflow/internal/approval"
	"github.com/smilemakc/agentflow/internal/bus"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/engine"
	"github.com/smilemakc/agentflow/internal/evolution"
	"github.com/smilemakc/agentflow/internal/infrastructure/monitoring"
	"github.com/smilemakc/agentflow/internal/infrastructure/tracing"
	"github.com/smilemakc/agentflow/internal/replay"
	"github.com/smilemakc/agentflow/internal/validate"
)

// Server is the application service behind every websocket command: it owns
// no transport state of its own (that's Hub/Client) and instead wires the
// engine, storage, bus, and approval/evolution coordinators together, so
// Client.handleCommand has a single dependency to call into per message
// type.
type Server struct {
	Engine   *engine.Engine
	Storage  domain.Storage
	Bus      *bus.Bus
	Approver *approval.Coordinator
	Evolver  *evolution.Coordinator
	Hub      *Hub
	Logger   zerolog.Logger

	// Metrics, when non-nil, receives a ConsoleObserver per execution so
	// its Snapshot() reflects real node/workflow timings. Optional: a nil
	// collector adds no ConsoleObserver (the Watch goroutine still runs
	// when WebhookURL is set).
	Metrics *monitoring.MetricsCollector

	// WebhookURL, when non-empty, receives an HTTPCallbackObserver per
	// execution alongside Metrics.
	WebhookURL string
}

func NewServer(eng *engine.Engine, storage domain.Storage, b *bus.Bus, approver *approval.Coordinator, evolver *evolution.Coordinator, hub *Hub, logger zerolog.Logger) *Server {
	return &Server{Engine: eng, Storage: storage, Bus: b, Approver: approver, Evolver: evolver, Hub: hub, Logger: logger}
}

// ListWorkflows returns every saved workflow as the "workflows" push payload.
func (s *Server) ListWorkflows(ctx context.Context) (*ServerMessage, error) {
	workflows, err := s.Storage.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]*WorkflowDTO, 0, len(workflows))
	for _, wf := range workflows {
		dtos = append(dtos, workflowToDTO(wf))
	}
	return newWorkflowsPush(dtos), nil
}

// SaveWorkflow creates or updates a workflow from its wire representation,
// validates its structure, persists it, and broadcasts workflow-updated to
// every hub client (a workflow-list-level push; per-execution pushes are
// each client's own bus subscription, not the hub's concern).
func (s *Server) SaveWorkflow(ctx context.Context, dto *WorkflowDTO) *ServerMessage {
	var existing domain.Workflow
	if dto.ID != "" {
		if id, err := uuid.Parse(dto.ID); err == nil {
			if wf, err := s.Storage.GetWorkflow(ctx, id); err == nil {
				existing = wf
			}
		}
	}

	wf, err := workflowFromDTO(dto, existing)
	if err != nil {
		return newWorkflowSavedPush(nil, err)
	}

	if result := validate.Workflow(wf); !result.Valid {
		return newWorkflowSavedPush(nil, fmt.Errorf("workflow failed validation: %d error(s)", len(result.Errors)))
	}

	if err := s.Storage.SaveWorkflow(ctx, wf); err != nil {
		return newWorkflowSavedPush(nil, err)
	}

	saved := workflowToDTO(wf)
	if s.Hub != nil {
		s.Hub.BroadcastWorkflowUpdated(saved)
	}
	return newWorkflowSavedPush(saved, nil)
}

// StartExecution begins a new execution of workflowID with the given raw
// input string, running the engine in its own goroutine so the websocket
// read loop is never blocked on a long-running workflow. Progress is
// delivered to subscribers through the bus, not this call's return value.
func (s *Server) StartExecution(ctx context.Context, workflowID, input string) (executionID string, err error) {
	wfID, err := uuid.Parse(workflowID)
	if err != nil {
		return "", fmt.Errorf("invalid workflow id: %w", err)
	}

	wf, err := s.Storage.GetWorkflow(ctx, wfID)
	if err != nil {
		return "", err
	}

	if result := validate.Workflow(wf); !result.Valid {
		return "", fmt.Errorf("workflow failed validation: %d error(s)", len(result.Errors))
	}

	exec, err := domain.NewExecution(uuid.New(), wfID)
	if err != nil {
		return "", err
	}
	return s.launch(wf, exec, input, nil), nil
}

// launch runs the engine for exec in its own goroutine, watching the run
// with the configured observers and persisting the execution's event journal
// once it reaches a terminal state. seed, when non-nil, pre-completes nodes
// from a replay plan.
func (s *Server) launch(wf domain.Workflow, exec domain.Execution, input string, seed map[uuid.UUID]map[string]any) (executionID string) {
	execID := exec.ID().String()

	var observers []monitoring.Observer
	if s.Metrics != nil {
		observers = append(observers, monitoring.NewConsoleObserver(s.Logger, s.Metrics))
	}
	if s.WebhookURL != "" {
		observers = append(observers, monitoring.NewHTTPCallbackObserver(s.WebhookURL, s.Logger))
	}
	if len(observers) > 0 {
		go monitoring.Watch(context.Background(), s.Bus, execID, observers...)
	}

	go func() {
		runCtx, span := tracing.StartSpan(context.Background(), "workflow.run",
			attribute.String("workflow.id", wf.ID().String()),
			attribute.String("execution.id", execID))
		defer span.End()

		if _, err := s.Engine.RunWithSeed(runCtx, wf, exec, input, seed); err != nil {
			span.RecordError(err)
			s.Logger.Warn().Err(err).Str("execution_id", execID).Msg("execution ended with error")
		}
		if s.Evolver != nil {
			for _, snap := range s.Evolver.History(execID) {
				exec.AppendEvolution(snap)
			}
		}
		if err := s.Storage.AppendEvents(context.Background(), exec.GetUncommittedEvents()); err != nil {
			s.Logger.Error().Err(err).Str("execution_id", execID).Msg("failed to persist execution events")
		}
		exec.MarkEventsAsCommitted()
		// The journal stays on the bus after completion so a later
		// subscribe-execution still replays it in full; clients that arrive
		// after a process restart fall back to the storage-backed journal
		// (Client.watchExecution).
	}()

	return execID
}

// Interrupt cancels a running execution.
func (s *Server) Interrupt(executionID string) {
	s.Engine.Interrupt(executionID)
}

// SubmitApproval resumes an approval node suspended on executionID/nodeID.
func (s *Server) SubmitApproval(executionID, nodeID string, resp ApprovalResponse) bool {
	return s.Approver.Submit(executionID, nodeID, domain.ApprovalResponse{Approved: resp.Approved, Feedback: resp.Feedback})
}

// SubmitEvolution resumes a self-reflect node suspended in "suggest" mode,
// reusing the same approval keyspace (executionID/nodeID) the evolution
// coordinator suspends a proposal on.
func (s *Server) SubmitEvolution(executionID, nodeID string, resp ApprovalResponse) bool {
	return s.Approver.Submit(executionID, nodeID, domain.ApprovalResponse{Approved: resp.Approved, Feedback: resp.Feedback})
}

// PlanReplay classifies a workflow's nodes against a completed source
// execution for a restart from fromNodeID.
func (s *Server) PlanReplay(ctx context.Context, workflowID, sourceExecutionID, fromNodeID string) (replay.Classification, error) {
	_, plan, err := s.planReplay(ctx, workflowID, sourceExecutionID, fromNodeID)
	return plan, err
}

func (s *Server) planReplay(ctx context.Context, workflowID, sourceExecutionID, fromNodeID string) (domain.Workflow, replay.Classification, error) {
	wfID, err := uuid.Parse(workflowID)
	if err != nil {
		return nil, replay.Classification{}, fmt.Errorf("invalid workflow id: %w", err)
	}
	srcID, err := uuid.Parse(sourceExecutionID)
	if err != nil {
		return nil, replay.Classification{}, fmt.Errorf("invalid source execution id: %w", err)
	}
	fromID, err := uuid.Parse(fromNodeID)
	if err != nil {
		return nil, replay.Classification{}, fmt.Errorf("invalid from node id: %w", err)
	}

	wf, err := s.Storage.GetWorkflow(ctx, wfID)
	if err != nil {
		return nil, replay.Classification{}, err
	}
	sourceExec, err := s.Storage.GetExecution(ctx, srcID)
	if err != nil {
		return nil, replay.Classification{}, err
	}

	return wf, replay.Plan(wf, sourceExec.GetAllNodeStates(), fromID), nil
}

// ReplayExecution plans and starts a partial re-run: every completed
// ancestor of fromNodeID is seeded from the source execution's recorded
// output, and scheduling resumes at fromNodeID and its descendants. The
// source execution's original input string seeds the input node the same
// way the planner seeds every other reused ancestor, so references to the
// input resolve identically to the source run.
func (s *Server) ReplayExecution(ctx context.Context, workflowID, sourceExecutionID, fromNodeID string) (executionID string, err error) {
	wf, plan, err := s.planReplay(ctx, workflowID, sourceExecutionID, fromNodeID)
	if err != nil {
		return "", err
	}
	if len(plan.Errors) > 0 {
		return "", plan.Errors[0]
	}

	exec, err := domain.NewExecution(uuid.New(), wf.ID())
	if err != nil {
		return "", err
	}

	var input string
	for id, output := range plan.NodeOutputs {
		n, err := wf.GetNode(id)
		if err != nil || n.Type() != domain.NodeTypeInput {
			continue
		}
		input, _ = output["value"].(string)
	}

	return s.launch(wf, exec, input, plan.NodeOutputs), nil
}

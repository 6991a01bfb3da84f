// Package storage provides the persistence layer: an in-memory store for
// tests and single-process deployments, and a bun/Postgres-backed store for
// durable multi-process deployments, both implementing domain.Storage.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/domain"
)

// MemoryStore is an in-process domain.Storage implementation. Executions are
// event-sourced: GetExecution rebuilds the aggregate from its event stream
// via domain.RebuildFromEvents rather than keeping a live Execution around,
// matching the event store's role as the primary source of truth.
type MemoryStore struct {
	mu sync.RWMutex

	workflows     map[uuid.UUID]domain.Workflow
	workflowNames map[string]uuid.UUID // "name@version" -> id

	events          map[uuid.UUID][]domain.Event // executionID -> events, append-only
	executionOwners map[uuid.UUID]uuid.UUID      // executionID -> workflowID
	snapshots       map[uuid.UUID]domain.Execution

	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:       make(map[uuid.UUID]domain.Workflow),
		workflowNames:   make(map[string]uuid.UUID),
		events:          make(map[uuid.UUID][]domain.Event),
		executionOwners: make(map[uuid.UUID]uuid.UUID),
		snapshots:       make(map[uuid.UUID]domain.Execution),
	}
}

func nameKey(name, version string) string {
	return name + "@" + version
}

// --- WorkflowRepository ---

func (s *MemoryStore) SaveWorkflow(_ context.Context, workflow domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[workflow.ID()] = workflow
	s.workflowNames[nameKey(workflow.Name(), workflow.Version())] = workflow.ID()
	return nil
}

func (s *MemoryStore) GetWorkflow(_ context.Context, id uuid.UUID) (domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s not found", id)
	}
	return w, nil
}

func (s *MemoryStore) GetWorkflowByName(_ context.Context, name, version string) (domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.workflowNames[nameKey(name, version)]
	if !ok {
		return nil, fmt.Errorf("workflow %s@%s not found", name, version)
	}
	return s.workflows[id], nil
}

func (s *MemoryStore) ListWorkflows(_ context.Context) ([]domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

func (s *MemoryStore) DeleteWorkflow(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok {
		return fmt.Errorf("workflow %s not found", id)
	}
	delete(s.workflowNames, nameKey(w.Name(), w.Version()))
	delete(s.workflows, id)
	return nil
}

func (s *MemoryStore) WorkflowExists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.workflows[id]
	return ok, nil
}

// --- EventStore ---

func (s *MemoryStore) AppendEvent(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(event)
	return nil
}

func (s *MemoryStore) AppendEvents(_ context.Context, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		s.appendLocked(ev)
	}
	return nil
}

func (s *MemoryStore) appendLocked(event domain.Event) {
	execID := event.ExecutionID()
	s.events[execID] = append(s.events[execID], event)
	s.executionOwners[execID] = event.WorkflowID()
}

func (s *MemoryStore) GetEvents(_ context.Context, executionID uuid.UUID) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, len(s.events[executionID]))
	copy(out, s.events[executionID])
	return out, nil
}

func (s *MemoryStore) GetEventsSince(_ context.Context, executionID uuid.UUID, sequenceNumber int64) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Event
	for _, ev := range s.events[executionID] {
		if ev.SequenceNumber() > sequenceNumber {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetEventsByType(_ context.Context, executionID uuid.UUID, eventType domain.EventType) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Event
	for _, ev := range s.events[executionID] {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetEventsByWorkflow(_ context.Context, workflowID uuid.UUID) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Event
	for execID, owner := range s.executionOwners {
		if owner != workflowID {
			continue
		}
		out = append(out, s.events[execID]...)
	}
	return out, nil
}

func (s *MemoryStore) GetEventCount(_ context.Context, executionID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events[executionID])), nil
}

// --- ExecutionRepository ---

func (s *MemoryStore) GetExecution(_ context.Context, id uuid.UUID) (domain.Execution, error) {
	s.mu.RLock()
	events := append([]domain.Event(nil), s.events[id]...)
	workflowID := s.executionOwners[id]
	s.mu.RUnlock()

	if len(events) == 0 {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	return domain.RebuildFromEvents(id, workflowID, events)
}

func (s *MemoryStore) ListExecutionsByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Execution, error) {
	s.mu.RLock()
	var ids []uuid.UUID
	for execID, owner := range s.executionOwners {
		if owner == workflowID {
			ids = append(ids, execID)
		}
	}
	s.mu.RUnlock()

	out := make([]domain.Execution, 0, len(ids))
	for _, id := range ids {
		exec, err := s.GetExecution(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, nil
}

func (s *MemoryStore) ListAllExecutions(ctx context.Context, limit, offset int) ([]domain.Execution, error) {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.executionOwners))
	for execID := range s.executionOwners {
		ids = append(ids, execID)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if offset >= len(ids) {
		return nil, nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]domain.Execution, 0, end-offset)
	for _, id := range ids[offset:end] {
		exec, err := s.GetExecution(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, execution domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[execution.ID()] = execution
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id uuid.UUID) (domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("no snapshot for execution %s", id)
	}
	return snap, nil
}

// --- Transactions ---
//
// MemoryStore has no real transaction support; it's single-process and
// every mutation above already takes s.mu. Begin/Commit/Rollback are no-ops
// that exist so code written against domain.Storage works unmodified
// against either backend.

func (s *MemoryStore) BeginTransaction(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	s.inTx = true
	s.mu.Unlock()
	return ctx, nil
}

func (s *MemoryStore) CommitTransaction(_ context.Context) error {
	s.mu.Lock()
	s.inTx = false
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RollbackTransaction(_ context.Context) error {
	s.mu.Lock()
	s.inTx = false
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ domain.Storage = (*MemoryStore)(nil)

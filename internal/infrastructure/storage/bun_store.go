package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/agentflow/internal/domain"
)

// WorkflowModel is the bun row for one workflow aggregate. Nodes, edges and
// triggers are stored as JSONB blobs rather than normalized into their own
// tables: the aggregate is always read and written whole (one
// SaveWorkflow/GetWorkflow round trip per call), so there is no query that
// benefits from a per-node row, and keeping the aggregate in one row makes
// SaveWorkflow atomic without a transaction.
type WorkflowModel struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid"`
	Name        string         `bun:"name,notnull"`
	Version     string         `bun:"version,notnull"`
	Description string         `bun:"description"`
	Spec        map[string]any `bun:"spec,type:jsonb"`
	State       string         `bun:"state,notnull"`
	Nodes       []nodeModel    `bun:"nodes,type:jsonb"`
	Edges       []edgeModel    `bun:"edges,type:jsonb"`
	Triggers    []triggerModel `bun:"triggers,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}

type nodeModel struct {
	ID     uuid.UUID      `json:"id"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
}

type edgeModel struct {
	ID           uuid.UUID      `json:"id"`
	FromNodeID   uuid.UUID      `json:"fromNodeId"`
	ToNodeID     uuid.UUID      `json:"toNodeId"`
	Type         string         `json:"type"`
	Config       map[string]any `json:"config"`
	SourceHandle string         `json:"sourceHandle"`
}

type triggerModel struct {
	ID     uuid.UUID      `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

func toNodeModels(nodes []domain.Node) []nodeModel {
	out := make([]nodeModel, 0, len(nodes))
	for _, n := range nodes {
		pos := n.Position()
		out = append(out, nodeModel{ID: n.ID(), Type: string(n.Type()), Name: n.Name(), Config: n.Config(), X: pos.X, Y: pos.Y})
	}
	return out
}

func fromNodeModels(models []nodeModel) []domain.Node {
	out := make([]domain.Node, 0, len(models))
	for _, m := range models {
		out = append(out, domain.NewNode(m.ID, domain.NodeType(m.Type), m.Name, m.Config, domain.Position{X: m.X, Y: m.Y}))
	}
	return out
}

func toEdgeModels(edges []domain.Edge) []edgeModel {
	out := make([]edgeModel, 0, len(edges))
	for _, e := range edges {
		out = append(out, edgeModel{
			ID: e.ID(), FromNodeID: e.FromNodeID(), ToNodeID: e.ToNodeID(),
			Type: string(e.Type()), Config: e.Config(), SourceHandle: e.SourceHandle(),
		})
	}
	return out
}

func fromEdgeModels(models []edgeModel) []domain.Edge {
	out := make([]domain.Edge, 0, len(models))
	for _, m := range models {
		out = append(out, domain.NewEdge(m.ID, m.FromNodeID, m.ToNodeID, domain.EdgeType(m.Type), m.Config, m.SourceHandle))
	}
	return out
}

func toTriggerModels(triggers []domain.Trigger) []triggerModel {
	out := make([]triggerModel, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, triggerModel{ID: t.ID(), Type: string(t.Type()), Config: t.Config()})
	}
	return out
}

func fromTriggerModels(models []triggerModel) []domain.Trigger {
	out := make([]domain.Trigger, 0, len(models))
	for _, m := range models {
		out = append(out, domain.NewTrigger(m.ID, domain.TriggerType(m.Type), m.Config))
	}
	return out
}

func workflowToModel(w domain.Workflow) *WorkflowModel {
	return &WorkflowModel{
		ID: w.ID(), Name: w.Name(), Version: w.Version(), Description: w.Description(),
		Spec: w.Spec(), State: string(w.State()),
		Nodes: toNodeModels(w.GetAllNodes()), Edges: toEdgeModels(w.GetAllEdges()),
		Triggers:  toTriggerModels(w.GetAllTriggers()),
		CreatedAt: w.CreatedAt(), UpdatedAt: w.UpdatedAt(),
	}
}

func modelToWorkflow(m *WorkflowModel) (domain.Workflow, error) {
	return domain.ReconstructWorkflow(
		m.ID, m.Name, m.Version, m.Description, m.Spec, domain.WorkflowState(m.State),
		m.CreatedAt, m.UpdatedAt,
		fromNodeModels(m.Nodes), fromEdgeModels(m.Edges), fromTriggerModels(m.Triggers),
	)
}

// EventModel is the bun row for one journaled domain event. Events are
// append-only: nothing ever updates or deletes a row here.
type EventModel struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	EventID        uuid.UUID        `bun:"event_id,pk,type:uuid"`
	EventType      string           `bun:"event_type,notnull"`
	AggregateID    uuid.UUID        `bun:"aggregate_id,type:uuid,notnull"`
	ExecutionID    uuid.UUID        `bun:"execution_id,type:uuid,notnull"`
	WorkflowID     uuid.UUID        `bun:"workflow_id,type:uuid,notnull"`
	NodeID         uuid.UUID        `bun:"node_id,type:uuid"`
	SequenceNumber int64            `bun:"sequence_number,notnull"`
	Timestamp      time.Time        `bun:"timestamp,notnull"`
	Data           map[string]any   `bun:"data,type:jsonb"`
	Metadata       map[string]string `bun:"metadata,type:jsonb"`
}

func eventToModel(ev domain.Event) *EventModel {
	return &EventModel{
		EventID: ev.EventID(), EventType: string(ev.EventType()), AggregateID: ev.AggregateID(),
		ExecutionID: ev.ExecutionID(), WorkflowID: ev.WorkflowID(), NodeID: ev.NodeID(),
		SequenceNumber: ev.SequenceNumber(), Timestamp: ev.Timestamp(),
		Data: ev.Data(), Metadata: ev.Metadata(),
	}
}

func modelToEvent(m *EventModel) domain.Event {
	return domain.ReconstructEvent(
		m.EventID, domain.EventType(m.EventType), m.AggregateID, m.Timestamp,
		m.SequenceNumber, m.WorkflowID, m.NodeID, m.Data, m.Metadata,
	)
}

// BunStore is the Postgres-backed domain.Storage implementation, used for
// durable multi-process deployments. It mirrors MemoryStore's event-sourced
// shape (GetExecution rebuilds from the event table) but persists through
// bun/pgdriver instead of an in-process map.
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a pgdriver connection against dsn and wraps it in bun.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates the workflows/events tables if they don't already
// exist. Called once at startup; migrations beyond this are out of scope.
func (s *BunStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*WorkflowModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create workflows table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*EventModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// --- WorkflowRepository ---

func (s *BunStore) SaveWorkflow(ctx context.Context, workflow domain.Workflow) error {
	m := workflowToModel(workflow)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name, version = EXCLUDED.version, description = EXCLUDED.description, "+
			"spec = EXCLUDED.spec, state = EXCLUDED.state, nodes = EXCLUDED.nodes, edges = EXCLUDED.edges, "+
			"triggers = EXCLUDED.triggers, updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunStore) GetWorkflow(ctx context.Context, id uuid.UUID) (domain.Workflow, error) {
	m := new(WorkflowModel)
	if err := s.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("workflow %s not found: %w", id, err)
	}
	return modelToWorkflow(m)
}

func (s *BunStore) GetWorkflowByName(ctx context.Context, name, version string) (domain.Workflow, error) {
	m := new(WorkflowModel)
	if err := s.db.NewSelect().Model(m).Where("name = ? AND version = ?", name, version).Scan(ctx); err != nil {
		return nil, fmt.Errorf("workflow %s@%s not found: %w", name, version, err)
	}
	return modelToWorkflow(m)
}

func (s *BunStore) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	var models []WorkflowModel
	if err := s.db.NewSelect().Model(&models).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Workflow, 0, len(models))
	for i := range models {
		w, err := modelToWorkflow(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *BunStore) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*WorkflowModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("workflow %s not found", id)
	}
	return nil
}

func (s *BunStore) WorkflowExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.db.NewSelect().Model((*WorkflowModel)(nil)).Where("id = ?", id).Exists(ctx)
}

// --- EventStore ---

func (s *BunStore) AppendEvent(ctx context.Context, event domain.Event) error {
	_, err := s.db.NewInsert().Model(eventToModel(event)).Exec(ctx)
	return err
}

func (s *BunStore) AppendEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	models := make([]*EventModel, len(events))
	for i, ev := range events {
		models[i] = eventToModel(ev)
	}
	_, err := s.db.NewInsert().Model(&models).Exec(ctx)
	return err
}

func (s *BunStore) GetEvents(ctx context.Context, executionID uuid.UUID) ([]domain.Event, error) {
	var models []EventModel
	if err := s.db.NewSelect().Model(&models).Where("execution_id = ?", executionID).Order("sequence_number ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return modelsToEvents(models), nil
}

func (s *BunStore) GetEventsSince(ctx context.Context, executionID uuid.UUID, sequenceNumber int64) ([]domain.Event, error) {
	var models []EventModel
	err := s.db.NewSelect().Model(&models).
		Where("execution_id = ? AND sequence_number > ?", executionID, sequenceNumber).
		Order("sequence_number ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return modelsToEvents(models), nil
}

func (s *BunStore) GetEventsByType(ctx context.Context, executionID uuid.UUID, eventType domain.EventType) ([]domain.Event, error) {
	var models []EventModel
	err := s.db.NewSelect().Model(&models).
		Where("execution_id = ? AND event_type = ?", executionID, string(eventType)).
		Order("sequence_number ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return modelsToEvents(models), nil
}

func (s *BunStore) GetEventsByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Event, error) {
	var models []EventModel
	err := s.db.NewSelect().Model(&models).
		Where("workflow_id = ?", workflowID).
		Order("execution_id ASC, sequence_number ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return modelsToEvents(models), nil
}

func (s *BunStore) GetEventCount(ctx context.Context, executionID uuid.UUID) (int64, error) {
	n, err := s.db.NewSelect().Model((*EventModel)(nil)).Where("execution_id = ?", executionID).Count(ctx)
	return int64(n), err
}

func modelsToEvents(models []EventModel) []domain.Event {
	out := make([]domain.Event, len(models))
	for i := range models {
		out[i] = modelToEvent(&models[i])
	}
	return out
}

// --- ExecutionRepository ---

func (s *BunStore) GetExecution(ctx context.Context, id uuid.UUID) (domain.Execution, error) {
	events, err := s.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	return domain.RebuildFromEvents(id, events[0].WorkflowID(), events)
}

func (s *BunStore) ListExecutionsByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Execution, error) {
	var ids []uuid.UUID
	err := s.db.NewSelect().Model((*EventModel)(nil)).
		ColumnExpr("DISTINCT execution_id").Where("workflow_id = ?", workflowID).Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
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

func (s *BunStore) ListAllExecutions(ctx context.Context, limit, offset int) ([]domain.Execution, error) {
	var ids []uuid.UUID
	q := s.db.NewSelect().Model((*EventModel)(nil)).
		ColumnExpr("DISTINCT execution_id").Order("execution_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, err
	}
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

// SaveSnapshot/GetSnapshot are no-ops against Postgres: GetExecution already
// rebuilds from the (indexed) event table fast enough that a snapshot table
// isn't justified yet. Kept to satisfy domain.ExecutionRepository.
func (s *BunStore) SaveSnapshot(_ context.Context, _ domain.Execution) error { return nil }

func (s *BunStore) GetSnapshot(_ context.Context, id uuid.UUID) (domain.Execution, error) {
	return nil, fmt.Errorf("no snapshot for execution %s", id)
}

// --- Transactions ---

type txKey struct{}

func (s *BunStore) BeginTransaction(ctx context.Context) (context.Context, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, txKey{}, tx), nil
}

func (s *BunStore) CommitTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	if !ok {
		return fmt.Errorf("no transaction in context")
	}
	return tx.Commit()
}

func (s *BunStore) RollbackTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	if !ok {
		return fmt.Errorf("no transaction in context")
	}
	return tx.Rollback()
}

func (s *BunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

var _ domain.Storage = (*BunStore)(nil)

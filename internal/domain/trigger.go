package domain

import "github.com/google/uuid"

// Trigger is a configured entry point that may start an execution of its
// owning workflow: manual (the websocket start-execution message), an HTTP
// webhook, or a cron-style schedule. Triggers are part of the Workflow
// aggregate and carry no state of their own beyond their configuration.
type Trigger interface {
	ID() uuid.UUID
	Type() TriggerType
	Config() map[string]any
}

type trigger struct {
	id          uuid.UUID
	triggerType TriggerType
	config      map[string]any
}

// NewTrigger creates a detached trigger value; use ReconstructWorkflow to
// attach one to an aggregate restored from storage (Workflow.AddTrigger
// creates and attaches a new trigger in one step).
func NewTrigger(id uuid.UUID, triggerType TriggerType, config map[string]any) Trigger {
	if config == nil {
		config = make(map[string]any)
	}
	return &trigger{id: id, triggerType: triggerType, config: config}
}

func (t *trigger) ID() uuid.UUID          { return t.id }
func (t *trigger) Type() TriggerType      { return t.triggerType }
func (t *trigger) Config() map[string]any { return t.config }

package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/smilemakc/agentflow/internal/domain"
)

// Starter begins a new execution of a workflow, the same operation the
// websocket transport's start-execution message drives. CronScheduler
// depends only on this narrow seam so it never needs to know about the
// bus/hub/engine wiring behind it.
type Starter interface {
	StartExecution(ctx context.Context, workflowID, input string) (executionID string, err error)
}

// CronScheduler starts workflows on a schedule: a domain.TriggerTypeSchedule
// trigger's cron expression runs alongside manual and webhook start-execution
// paths. A trigger's config carries {"schedule": "<cron expr>"} (seconds
// field included, per robfig/cron's WithSeconds) and an optional
// {"input": "<string>"} default passed as the run's user input.
type CronScheduler struct {
	storage domain.Storage
	starter Starter
	cron    *cron.Cron

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID // triggerID -> entryID
}

func NewCronScheduler(storage domain.Storage, starter Starter) *CronScheduler {
	return &CronScheduler{
		storage: storage,
		starter: starter,
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Start loads every saved workflow's schedule triggers and begins running
// the cron loop. It does not block.
func (s *CronScheduler) Start(ctx context.Context) error {
	workflows, err := s.storage.ListWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("trigger: failed to list workflows: %w", err)
	}

	s.mu.Lock()
	for _, wf := range workflows {
		for _, trg := range wf.GetAllTriggers() {
			if trg.Type() != domain.TriggerTypeSchedule {
				continue
			}
			if err := s.addLocked(wf.ID(), trg); err != nil {
				continue
			}
		}
	}
	s.mu.Unlock()

	s.cron.Start()
	return nil
}

// Stop drains in-flight jobs and halts the cron loop.
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AddTrigger registers (or replaces) one schedule trigger without
// restarting the whole scheduler; used when a workflow is saved with a new
// or edited schedule trigger.
func (s *CronScheduler) AddTrigger(workflowID uuid.UUID, trg domain.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(workflowID, trg)
}

// RemoveTrigger unregisters a previously-added schedule trigger.
func (s *CronScheduler) RemoveTrigger(triggerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[triggerID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, triggerID)
	}
}

func (s *CronScheduler) addLocked(workflowID uuid.UUID, trg domain.Trigger) error {
	if entryID, exists := s.entries[trg.ID()]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, trg.ID())
	}

	expr, ok := trg.Config()["schedule"].(string)
	if !ok || expr == "" {
		return fmt.Errorf("trigger: schedule trigger %s has no schedule expression", trg.ID())
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		// Fall back to the seconds-aware parser for expressions with six
		// fields (robfig/cron's WithSeconds default parser).
		schedule, err = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(expr)
		if err != nil {
			return fmt.Errorf("trigger: invalid schedule expression %q: %w", expr, err)
		}
	}

	input, _ := trg.Config()["input"].(string)
	entryID := s.cron.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, _ = s.starter.StartExecution(ctx, workflowID.String(), input)
	}))
	s.entries[trg.ID()] = entryID
	return nil
}

// Package rest implements the HTTP surface: workflow CRUD plus duplication,
// trigger webhooks, and read-only execution/event listing. It deliberately
// uses net/http's method-and-pattern ServeMux rather than a third-party
// router — the route set here is small enough that ServeMux's exact-method
// matching is sufficient.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/infrastructure/monitoring"
	"github.com/smilemakc/agentflow/internal/trigger"
	"github.com/smilemakc/agentflow/internal/validate"
)

// Starter begins a new execution, the same seam trigger.CronScheduler
// depends on. A nil Starter still serves the read/write workflow surface;
// only the webhook trigger route needs one.
type Starter interface {
	StartExecution(ctx context.Context, workflowID, input string) (executionID string, err error)
}

// Server is the REST application service: it owns no engine execution
// state of its own (that's the websocket.Server's job, since only the
// socket transport starts and streams runs) and instead serves the
// storage-backed workflow/execution surface, mirroring the split between
// websocket.Server (live command/push) and this read-mostly HTTP layer.
type Server struct {
	storage domain.Storage
	starter Starter
	metrics *monitoring.MetricsCollector
	logger  zerolog.Logger
	mux     *http.ServeMux
}

func NewServer(storage domain.Storage, logger zerolog.Logger) *Server {
	s := &Server{storage: storage, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// WithStarter enables the POST /api/workflows/{id}/triggers/{triggerId}
// webhook route, backed by starter (typically the websocket.Server, which
// already implements StartExecution).
func (s *Server) WithStarter(starter Starter) *Server {
	s.starter = starter
	return s
}

// WithMetrics enables GET /api/metrics, serving a snapshot of collector's
// accumulated workflow/node/AI usage counters.
func (s *Server) WithMetrics(collector *monitoring.MetricsCollector) *Server {
	s.metrics = collector
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	recoveryMiddleware(s.logger, loggingMiddleware(s.logger, tracingMiddleware(corsMiddleware(s.mux)))).ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	s.mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("PUT /api/workflows/{id}", s.handleUpdateWorkflow)
	s.mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)
	s.mux.HandleFunc("POST /api/workflows/{id}/duplicate", s.handleDuplicateWorkflow)
	s.mux.HandleFunc("GET /api/workflows/{id}/executions", s.handleListExecutions)
	s.mux.HandleFunc("GET /api/workflows/{id}/executions/{executionId}", s.handleGetExecution)
	s.mux.HandleFunc("GET /api/workflows/{id}/executions/{executionId}/events", s.handleGetExecutionEvents)
	s.mux.HandleFunc("POST /api/workflows/{id}/triggers/{triggerId}", s.handleTriggerWebhook)
	s.mux.HandleFunc("GET /api/metrics", s.handleMetrics)
}

// handleMetrics serves the accumulated execution metrics the bus's
// monitoring.ConsoleObserver records as executions run. Returns 503 when no
// collector is wired (e.g. a server started without WithMetrics).
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("metrics collection is not enabled on this server"))
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleTriggerWebhook is the HTTP-trigger route, alongside the cron-backed
// schedule trigger: POSTing to a workflow's domain.TriggerTypeHTTP trigger
// starts an execution the same way a start-execution websocket message
// would, gated by the trigger's own configured method via
// trigger.HTTPTrigger — the same handler wrapper a standalone webhook
// listener would use.
func (s *Server) handleTriggerWebhook(w http.ResponseWriter, r *http.Request) {
	if s.starter == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("webhook triggers are not enabled on this server"))
		return
	}

	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	triggerID, ok := parseID(w, r, "triggerId")
	if !ok {
		return
	}
	trg, err := wf.GetTrigger(triggerID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if trg.Type() != domain.TriggerTypeHTTP {
		writeError(w, http.StatusBadRequest, errors.New("trigger is not an http trigger"))
		return
	}

	method, _ := trg.Config()["method"].(string)
	handler := trigger.NewHTTP(trigger.HTTPConfig{Method: method}).Handler(func(ctx context.Context, payload map[string]any) (int, any) {
		input, _ := payload["input"].(string)
		execID, err := s.starter.StartExecution(ctx, wf.ID().String(), input)
		if err != nil {
			return http.StatusInternalServerError, errorResponse{Error: err.Error()}
		}
		return http.StatusAccepted, map[string]string{"executionId": execID}
	})
	handler(w, r)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.storage.ListWorkflows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]*WorkflowDTO, 0, len(workflows))
	for _, wf := range workflows {
		dtos = append(dtos, workflowToDTO(wf))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var dto WorkflowDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	wf, err := workflowFromDTO(&dto, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if result := validate.Workflow(wf); !result.Valid {
		writeValidationError(w, result)
		return
	}
	if err := s.storage.SaveWorkflow(r.Context(), wf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, workflowToDTO(wf))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, workflowToDTO(wf))
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}

	var dto WorkflowDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	wf, err := workflowFromDTO(&dto, existing)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if result := validate.Workflow(wf); !result.Valid {
		writeValidationError(w, result)
		return
	}
	if err := s.storage.SaveWorkflow(r.Context(), wf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, workflowToDTO(wf))
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := s.storage.DeleteWorkflow(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDuplicateWorkflow implements the supplemented duplication feature:
// deep-copy the aggregate through the DTO round trip (which always mints
// fresh node/edge/trigger ids, the same as a client-authored save) rather
// than a raw struct copy, so the copy's invariants are re-validated exactly
// as any other save would be.
func (s *Server) handleDuplicateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}

	dto := workflowToDTO(wf)
	dto.ID = ""
	dto.Name = dto.Name + " (copy)"

	copyWf, err := workflowFromDTO(dto, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if result := validate.Workflow(copyWf); !result.Valid {
		writeValidationError(w, result)
		return
	}
	if err := s.storage.SaveWorkflow(r.Context(), copyWf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, workflowToDTO(copyWf))
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	wfID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	wf, err := s.storage.GetWorkflow(r.Context(), wfID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	execs, err := s.storage.ListExecutionsByWorkflow(r.Context(), wfID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]*ExecutionSummaryDTO, 0, len(execs))
	for _, exec := range execs {
		dtos = append(dtos, executionToSummaryDTO(wf, exec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	wf, execID, ok := s.loadWorkflowAndExecutionID(w, r)
	if !ok {
		return
	}
	exec, err := s.storage.GetExecution(r.Context(), execID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, executionToSummaryDTO(wf, exec))
}

func (s *Server) handleGetExecutionEvents(w http.ResponseWriter, r *http.Request) {
	_, execID, ok := s.loadWorkflowAndExecutionID(w, r)
	if !ok {
		return
	}
	events, err := s.storage.GetEvents(r.Context(), execID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	records := make([]ExecutionEventRecordDTO, 0, len(events))
	for _, ev := range events {
		records = append(records, domainEventToRecord(ev))
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) loadWorkflow(w http.ResponseWriter, r *http.Request) (domain.Workflow, bool) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return nil, false
	}
	wf, err := s.storage.GetWorkflow(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return wf, true
}

func (s *Server) loadWorkflowAndExecutionID(w http.ResponseWriter, r *http.Request) (domain.Workflow, uuid.UUID, bool) {
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return nil, uuid.Nil, false
	}
	execID, ok := parseID(w, r, "executionId")
	if !ok {
		return nil, uuid.Nil, false
	}
	return wf, execID, true
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(param))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid "+param))
		return uuid.Nil, false
	}
	return id, true
}

var bodyValidator = validator.New()

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := bodyValidator.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				field := strings.ToLower(fe.Field())
				switch fe.Tag() {
				case "required":
					msgs = append(msgs, fmt.Sprintf("%s is required", field))
				case "min":
					msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
				case "max":
					msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
				default:
					msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
				}
			}
			writeError(w, http.StatusBadRequest, errors.New(strings.Join(msgs, "; ")))
			return false
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeValidationError(w http.ResponseWriter, result validate.Result) {
	type fieldError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	errs := make([]fieldError, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fieldError{Code: string(e.Code), Message: e.Message})
	}
	writeJSON(w, http.StatusUnprocessableEntity, struct {
		Errors []fieldError `json:"errors"`
	}{Errors: errs})
}

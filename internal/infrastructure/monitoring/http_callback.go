package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/agentflow/internal/bus"
)

// httpCallbackPayload is the wire shape POSTed to a webhook URL for every
// execution event. It copies a subset of ExecutionEvent's exported fields
// rather than embedding the struct; the optional AgentEvent/Approval/
// Evolution payloads and the other event-specific fields are not sent.
type httpCallbackPayload struct {
	Kind        string    `json:"kind"`
	ExecutionID string    `json:"executionId"`
	WorkflowID  string    `json:"workflowId,omitempty"`
	NodeID      string    `json:"nodeId,omitempty"`
	NodeName    string    `json:"nodeName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Sequence    int64     `json:"sequence"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// HTTPCallbackObserver POSTs a JSON payload to a configured URL for every
// execution event, for deployments that want push notifications instead of
// (or alongside) a websocket subscription. Delivery is best-effort: a failed
// POST is logged and dropped, never retried inline, so a flaky webhook
// endpoint cannot stall the bus subscription feeding it.
type HTTPCallbackObserver struct {
	URL        string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewHTTPCallbackObserver(url string, logger zerolog.Logger) *HTTPCallbackObserver {
	return &HTTPCallbackObserver{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Logger:     logger,
	}
}

func (o *HTTPCallbackObserver) Observe(ev bus.ExecutionEvent) {
	payload := httpCallbackPayload{
		Kind:        string(ev.Kind),
		ExecutionID: ev.ExecutionID,
		WorkflowID:  ev.WorkflowID,
		NodeID:      ev.NodeID,
		NodeName:    ev.NodeName,
		Timestamp:   ev.Timestamp,
		Sequence:    ev.Sequence,
		Result:      ev.Result,
		Error:       ev.Error,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		o.Logger.Error().Err(err).Msg("failed to marshal callback payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.HTTPClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(body))
	if err != nil {
		o.Logger.Error().Err(err).Msg("failed to build callback request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		o.Logger.Warn().Err(err).Str("url", o.URL).Msg("callback delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		o.Logger.Warn().Int("status", resp.StatusCode).Str("url", o.URL).Msg("callback endpoint rejected event")
	}
}

var _ Observer = (*HTTPCallbackObserver)(nil)
var _ Observer = (*ConsoleObserver)(nil)

package domain

import "time"

// ApprovalRequest is what an approval node publishes onto the bus when it
// suspends, and what a human-facing surface renders to collect a decision.
type ApprovalRequest struct {
	NodeID         string
	NodeName       string
	PromptMessage  string
	DisplayData    map[string]any
	FeedbackPrompt string
	TimeoutAt      *time.Time
}

// ApprovalResponse is submitted back to the coordinator to resume a
// suspended approval node.
type ApprovalResponse struct {
	Approved bool
	Feedback string
}

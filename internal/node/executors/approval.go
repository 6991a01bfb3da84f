package executors

import (
	"context"
	"fmt"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

// Approval suspends execution until a human responds through in.Approve.
// The chosen Output.Handle ("approved" or "rejected") is what downstream
// branch pruning keys off of, same as Condition.
type Approval struct{}

func (Approval) Validate(n domain.Node) error {
	if _, ok := n.Config()["promptMessage"].(string); !ok {
		return fmt.Errorf("approval node %q: promptMessage is required", n.Name())
	}
	return nil
}

func (Approval) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	promptMessage, _ := in.Config["promptMessage"].(string)
	feedbackPrompt, _ := in.Config["feedbackPrompt"].(string)
	timeoutSeconds, _ := in.Config["timeoutSeconds"].(float64)

	var displayData map[string]any
	if raw, ok := in.Config["displayData"].(string); ok {
		displayData = map[string]any{"value": in.Resolve(raw)}
	}

	req := domain.ApprovalRequest{
		NodeID:         in.Node.ID().String(),
		NodeName:       in.Node.Name(),
		PromptMessage:  in.Resolve(promptMessage),
		FeedbackPrompt: feedbackPrompt,
		DisplayData:    displayData,
	}

	resp, err := in.Approve(ctx, req, timeoutSeconds)
	if err != nil {
		if ctx.Err() != nil {
			return node.Output{}, fmt.Errorf("approval node %q: %w", in.Node.Name(), err)
		}
		// The wait itself timed out; take the node's configured action.
		switch action, _ := in.Config["timeoutAction"].(string); action {
		case "approve":
			resp = domain.ApprovalResponse{Approved: true}
		case "reject":
			resp = domain.ApprovalResponse{Approved: false}
		default:
			return node.Output{}, apperrors.Wrap(apperrors.CodeApprovalTimeout,
				fmt.Sprintf("approval node %q timed out", in.Node.Name()), err)
		}
	}

	handle := "rejected"
	if resp.Approved {
		handle = "approved"
	}
	return node.Output{
		Data:   map[string]any{"approved": resp.Approved, "feedback": resp.Feedback},
		Handle: handle,
	}, nil
}

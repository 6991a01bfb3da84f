package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/smilemakc/agentflow/internal/domain"
)

func sessionIDOrNew(existing string) string {
	if existing != "" {
		return existing
	}
	return uuid.New().String()
}

func newStreamID() string {
	return uuid.New().String()
}

// emit sends ev on out, tagged with h, unless ctx is already done. Returns
// false if the send was abandoned because ctx was cancelled, signalling the
// caller to stop producing further events.
func emit(ctx context.Context, out chan<- Event, h Handle, ev domain.AgentEvent) bool {
	select {
	case out <- Event{Handle: h, Event: ev}:
		return true
	case <-ctx.Done():
		return false
	}
}

// interruptedText is the terminal error message an interrupted stream
// drains to. Clients match on it verbatim.
const interruptedText = "Execution interrupted"

// prepareOutputFormat parses the caller-authored output schema and wraps it
// in the transport's structured-response parameter. strict applies the
// Codex dialect's normalization (every property required,
// additionalProperties false, recursively).
func prepareOutputFormat(cfg *OutputConfig, strict bool) (*openai.ChatCompletionResponseFormat, error) {
	if cfg == nil {
		return nil, nil
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(cfg.Schema), &schema); err != nil {
		return nil, fmt.Errorf("invalid output schema JSON: %w", err)
	}
	if strict {
		schema = Strictify(schema)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("re-encode output schema: %w", err)
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "structured_output",
			Schema: json.RawMessage(raw),
			Strict: strict,
		},
	}, nil
}

// toolDefs translates the uniform ToolSpec set into the transport's tool
// parameter, optionally strictifying each schema.
func toolDefs(specs []ToolSpec, strict bool) []openai.Tool {
	tools := make([]openai.Tool, 0, len(specs))
	for _, t := range specs {
		params := t.Parameters
		if strict {
			params = Strictify(params)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// streamTurn drives one chat-completion turn to its terminal event. All
// failures — transport errors, a cancelled ctx, a structured response that
// never arrived or doesn't parse — surface as a single error event; the
// function never panics or leaks a half-open stream. store receives the
// turn's StructuredOutput when one was requested and parsed.
func streamTurn(ctx context.Context, client *openai.Client, model string, strict bool, req Request, out chan<- Event, h Handle, store func(StructuredOutput)) {
	format, err := prepareOutputFormat(req.Output, strict)
	if err != nil {
		emit(ctx, out, h, domain.NewAgentErrorEvent(err.Error()))
		return
	}

	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:          model,
		Messages:       messages,
		Tools:          toolDefs(req.Tools, strict),
		Stream:         true,
		ResponseFormat: format,
	})
	if err != nil {
		emit(ctx, out, h, domain.NewAgentErrorEvent(err.Error()))
		return
	}
	defer stream.Close()

	var full string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			emit(ctx, out, h, domain.NewAgentErrorEvent(err.Error()))
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		for _, call := range choice.Delta.ToolCalls {
			if !emit(ctx, out, h, domain.NewToolUseEvent(call.ID, call.Function.Name, nil)) {
				return
			}
		}
		if choice.Delta.Content == "" {
			continue
		}
		full += choice.Delta.Content
		if !emit(ctx, out, h, domain.NewTextDeltaEvent(choice.Delta.Content)) {
			return
		}
	}
	if ctx.Err() != nil {
		emit(context.Background(), out, h, domain.NewAgentErrorEvent(interruptedText))
		return
	}

	if req.Output != nil {
		if full == "" {
			emit(ctx, out, h, domain.NewAgentErrorEvent("Structured output requested, but no response was returned"))
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(full), &parsed); err != nil {
			emit(ctx, out, h, domain.NewAgentErrorEvent(fmt.Sprintf("Failed to parse structured output JSON: %v", err)))
			return
		}
		store(StructuredOutput{Format: "json", Content: full, Parsed: parsed, FilePath: req.Output.FilePath})
	}

	emit(ctx, out, h, domain.NewCompleteEvent(full))
}

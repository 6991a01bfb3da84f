package domain

import "time"

// AgentEventKind tags the variant carried by an AgentEvent.
type AgentEventKind string

const (
	AgentEventTextDelta AgentEventKind = "text-delta"
	AgentEventThinking  AgentEventKind = "thinking"
	AgentEventToolUse   AgentEventKind = "tool-use"
	AgentEventToolResult AgentEventKind = "tool-result"
	AgentEventTodoList  AgentEventKind = "todo-list"
	AgentEventComplete  AgentEventKind = "complete"
	AgentEventError     AgentEventKind = "error"
)

// AgentEvent is the uniform streaming unit every agent adapter emits,
// regardless of which concrete agent network backs it. Executors and the
// bus never branch on the adapter flavor, only on Kind.
type AgentEvent struct {
	Kind AgentEventKind

	// TextDelta / Thinking
	Text string

	// ToolUse
	ToolUseID string
	ToolName  string
	ToolInput map[string]any

	// ToolResult
	ToolOutput any
	IsError    bool

	// TodoList
	Todos []AgentTodo

	// Complete
	Result any

	// Error
	Err string

	Timestamp time.Time
}

// AgentTodo is one entry of a todo-list progress event.
type AgentTodo struct {
	Content string
	Status  string // pending | in_progress | completed
}

func NewTextDeltaEvent(text string) AgentEvent {
	return AgentEvent{Kind: AgentEventTextDelta, Text: text, Timestamp: time.Now()}
}

func NewThinkingEvent(text string) AgentEvent {
	return AgentEvent{Kind: AgentEventThinking, Text: text, Timestamp: time.Now()}
}

func NewToolUseEvent(id, name string, input map[string]any) AgentEvent {
	return AgentEvent{Kind: AgentEventToolUse, ToolUseID: id, ToolName: name, ToolInput: input, Timestamp: time.Now()}
}

func NewToolResultEvent(id string, output any, isError bool) AgentEvent {
	return AgentEvent{Kind: AgentEventToolResult, ToolUseID: id, ToolOutput: output, IsError: isError, Timestamp: time.Now()}
}

func NewTodoListEvent(todos []AgentTodo) AgentEvent {
	return AgentEvent{Kind: AgentEventTodoList, Todos: todos, Timestamp: time.Now()}
}

func NewCompleteEvent(result any) AgentEvent {
	return AgentEvent{Kind: AgentEventComplete, Result: result, Timestamp: time.Now()}
}

func NewAgentErrorEvent(err string) AgentEvent {
	return AgentEvent{Kind: AgentEventError, Err: err, Timestamp: time.Now()}
}

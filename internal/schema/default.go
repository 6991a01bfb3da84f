package schema

import "github.com/smilemakc/agentflow/internal/domain"

// Default returns the built-in schema set for the ten node types the
// engine ships: input, output, claude-agent, codex-agent, condition, merge,
// javascript, bash, approval, self-reflect.
func Default() []NodeSchema {
	return []NodeSchema{
		{
			Type:      domain.NodeTypeInput,
			Deletable: false,
			Outputs:   []IOPort{{Name: "value", Description: "the raw execution input string"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
			},
		},
		{
			Type:      domain.NodeTypeOutput,
			Deletable: false,
			Inputs:    []IOPort{{Name: "value", Description: "final result"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "source", Display: "Source", Type: PropertyReference, Required: true},
			},
		},
		{
			Type:      domain.NodeTypeClaudeAgent,
			Deletable: true,
			Inputs:    []IOPort{{Name: "prompt", Description: "interpolated user prompt"}},
			Outputs:   []IOPort{{Name: "text", Description: "final assistant text"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "model", Display: "Model", Type: PropertySelect, Required: true,
					Options: []string{"opus", "sonnet", "haiku"}},
				{Name: "userQuery", Display: "Prompt", Type: PropertyReference, Required: true},
				{Name: "systemPrompt", Display: "System prompt", Type: PropertyTextarea},
				{Name: "mcpServers", Display: "MCP servers", Type: PropertyMCPServerSelector},
				{Name: "maxTurns", Display: "Max turns", Type: PropertyNumber},
				{Name: "toolSchema", Display: "Tool schema", Type: PropertySchemaBuilder,
					ShowWhen: `mode == "tool-use"`},
				{Name: "mode", Display: "Mode", Type: PropertySelect,
					Options: []string{"chat", "tool-use"}},
				{Name: "outputSchema", Display: "Output schema", Type: PropertyCode},
				{Name: "outputFilePath", Display: "Output file", Type: PropertyString,
					ShowWhen: `outputSchema != ""`},
				{Name: "sessionId", Display: "Session", Type: PropertyString},
				{Name: "maxRetries", Display: "Max retries", Type: PropertyNumber},
				{Name: "retryDelay", Display: "Retry delay", Type: PropertyString},
			},
		},
		{
			Type:      domain.NodeTypeCodexAgent,
			Deletable: true,
			Inputs:    []IOPort{{Name: "prompt", Description: "interpolated user prompt"}},
			Outputs:   []IOPort{{Name: "text", Description: "final assistant text"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "model", Display: "Model", Type: PropertySelect, Required: true,
					Options: []string{"gpt-5-codex", "o4-mini"}},
				{Name: "userQuery", Display: "Prompt", Type: PropertyReference, Required: true},
				{Name: "reasoningEffort", Display: "Reasoning effort", Type: PropertySelect,
					Options: []string{"low", "medium", "high"}},
				{Name: "sandboxed", Display: "Sandboxed", Type: PropertyBoolean},
				{Name: "outputSchema", Display: "Output schema", Type: PropertyCode},
				{Name: "outputFilePath", Display: "Output file", Type: PropertyString,
					ShowWhen: `outputSchema != ""`},
				{Name: "sessionId", Display: "Session", Type: PropertyString},
				{Name: "maxRetries", Display: "Max retries", Type: PropertyNumber},
				{Name: "retryDelay", Display: "Retry delay", Type: PropertyString},
			},
		},
		{
			Type:      domain.NodeTypeCondition,
			Deletable: true,
			Inputs:    []IOPort{{Name: "value", Description: "value under test"}},
			Outputs:   []IOPort{{Name: "matched", Description: "boolean result"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "rules", Display: "Condition", Type: PropertyConditionRules, Required: true},
			},
		},
		{
			Type:      domain.NodeTypeMerge,
			Deletable: true,
			Outputs:   []IOPort{{Name: "merged", Description: "map keyed by predecessor node name"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "strategy", Display: "Strategy", Type: PropertySelect, Required: true,
					Options: []string{"wait-all", "first-complete"}},
			},
		},
		{
			Type:      domain.NodeTypeJavaScript,
			Deletable: true,
			Inputs:    []IOPort{{Name: "input", Description: "inputs object"}},
			Outputs:   []IOPort{{Name: "result", Description: "script return value"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "code", Display: "Code", Type: PropertyCode, Required: true},
				{Name: "inputMappings", Display: "Inputs", Type: PropertyInputSelector},
				{Name: "timeoutMs", Display: "Timeout (ms)", Type: PropertyNumber},
				{Name: "maxRetries", Display: "Max retries", Type: PropertyNumber},
				{Name: "retryDelay", Display: "Retry delay", Type: PropertyString},
			},
		},
		{
			Type:      domain.NodeTypeBash,
			Deletable: true,
			Inputs:    []IOPort{{Name: "input", Description: "inputs object"}},
			Outputs:   []IOPort{{Name: "stdout", Description: "captured stdout"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "script", Display: "Script", Type: PropertyCode, Required: true},
				{Name: "inputMappings", Display: "Inputs", Type: PropertyInputSelector},
				{Name: "timeoutMs", Display: "Timeout (ms)", Type: PropertyNumber},
				{Name: "maxRetries", Display: "Max retries", Type: PropertyNumber},
				{Name: "retryDelay", Display: "Retry delay", Type: PropertyString},
			},
		},
		{
			Type:      domain.NodeTypeApproval,
			Deletable: true,
			Outputs:   []IOPort{{Name: "approved", Description: "boolean decision"}},
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "promptMessage", Display: "Prompt", Type: PropertyTextarea, Required: true},
				{Name: "displayData", Display: "Display data", Type: PropertyReference},
				{Name: "feedbackPrompt", Display: "Feedback prompt", Type: PropertyString},
				{Name: "timeoutSeconds", Display: "Timeout (s)", Type: PropertyNumber},
				{Name: "timeoutAction", Display: "On timeout", Type: PropertySelect,
					Options: []string{"approve", "reject", "fail"},
					ShowWhen: "timeoutSeconds > 0"},
			},
		},
		{
			Type:      domain.NodeTypeSelfReflect,
			Deletable: false,
			Properties: []Property{
				{Name: "name", Display: "Name", Type: PropertyString, Required: true},
				{Name: "mode", Display: "Mode", Type: PropertySelect, Required: true,
					Options: []string{"dry-run", "suggest", "auto-apply"}},
				{Name: "scope", Display: "Scope", Type: PropertyMultiSelect,
					Options: []string{"models", "prompts", "structure"}},
				{Name: "maxMutations", Display: "Max mutations", Type: PropertyNumber},
				{Name: "includeTranscripts", Display: "Include transcripts", Type: PropertyBoolean},
				{Name: "instructions", Display: "Instructions", Type: PropertyTextarea, Required: true},
			},
		},
	}
}

// MustDefaultRegistry builds the Registry from Default() and panics on
// programmer error (duplicate type registration) — safe to call at
// process startup.
func MustDefaultRegistry() *Registry {
	reg, err := NewRegistry(Default())
	if err != nil {
		panic(err)
	}
	return reg
}

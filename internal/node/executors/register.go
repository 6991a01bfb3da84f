package executors

import (
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
	"github.com/smilemakc/agentflow/internal/resilience"
)

// RegisterDefaults wires one Executor per built-in node type into reg. Both
// claude-agent and codex-agent share the same AgentNode executor — the
// scheduler resolves the concrete agent.Adapter per node type at dispatch
// time via node.Input.Agent.
func RegisterDefaults(reg *node.Registry) {
	reg.Register(domain.NodeTypeInput, Input{})
	reg.Register(domain.NodeTypeOutput, Output{})
	reg.Register(domain.NodeTypeClaudeAgent, AgentNode{})
	reg.Register(domain.NodeTypeCodexAgent, AgentNode{})
	reg.Register(domain.NodeTypeCondition, Condition{})
	reg.Register(domain.NodeTypeMerge, Merge{})
	reg.Register(domain.NodeTypeJavaScript, JavaScript{})
	reg.Register(domain.NodeTypeBash, Bash{})
	reg.Register(domain.NodeTypeApproval, Approval{})
	reg.Register(domain.NodeTypeSelfReflect, SelfReflect{})
}

// RegisterResilient is RegisterDefaults plus circuit-breaker/retry wrapping
// around the node types that call out to flaky external collaborators: the
// two agent flavors and the sandboxed code executors. Condition/merge/
// input/output/approval/self-reflect are pure or already suspension-based
// and are registered unwrapped, same as RegisterDefaults. Production wiring
// (cmd/server) uses this; package-level executor tests use the plain
// RegisterDefaults so retry backoff never slows down a unit test.
func RegisterResilient(reg *node.Registry, breakers *resilience.Registry) {
	reg.Register(domain.NodeTypeInput, Input{})
	reg.Register(domain.NodeTypeOutput, Output{})
	reg.Register(domain.NodeTypeClaudeAgent, resilience.NewRetryingExecutor(AgentNode{}, breakers))
	reg.Register(domain.NodeTypeCodexAgent, resilience.NewRetryingExecutor(AgentNode{}, breakers))
	reg.Register(domain.NodeTypeCondition, Condition{})
	reg.Register(domain.NodeTypeMerge, Merge{})
	reg.Register(domain.NodeTypeJavaScript, resilience.NewRetryingExecutor(JavaScript{}, breakers))
	reg.Register(domain.NodeTypeBash, resilience.NewRetryingExecutor(Bash{}, breakers))
	reg.Register(domain.NodeTypeApproval, Approval{})
	reg.Register(domain.NodeTypeSelfReflect, SelfReflect{})
}

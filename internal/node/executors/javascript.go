package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

const defaultScriptTimeout = 5 * time.Second

// JavaScript runs a user-authored snippet in an isolated goja VM per
// invocation. The snippet's references are interpolated before execution,
// so "input" in the code sees plain resolved strings rather than a live
// object graph; the snippet's last expression value (or an explicit
// `result` global) becomes the node's output.
type JavaScript struct{}

func (JavaScript) Validate(n domain.Node) error {
	if code, _ := n.Config()["code"].(string); code == "" {
		return fmt.Errorf("javascript node %q: code is required", n.Name())
	}
	return nil
}

func (JavaScript) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	code, _ := in.Config["code"].(string)
	code = in.Resolve(code)

	runCtx, cancel := context.WithTimeout(ctx, configTimeout(in.Config, "timeoutMs", defaultScriptTimeout))
	defer cancel()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	vm := goja.New()
	for name, value := range inputMappings(in) {
		if err := vm.Set(name, value); err != nil {
			return node.Output{}, fmt.Errorf("javascript node %q: binding %q: %w", in.Node.Name(), name, err)
		}
	}

	go func() {
		v, err := vm.RunString(code)
		if err != nil {
			errCh <- err
			return
		}
		if result := vm.Get("result"); result != nil && !goja.IsUndefined(result) {
			resultCh <- result.Export()
			return
		}
		resultCh <- v.Export()
	}()

	select {
	case err := <-errCh:
		return node.Output{}, fmt.Errorf("javascript node %q: %w", in.Node.Name(), err)
	case result := <-resultCh:
		return node.Output{Data: map[string]any{"result": result}}, nil
	case <-runCtx.Done():
		vm.Interrupt("timed out")
		return node.Output{}, fmt.Errorf("javascript node %q: %w", in.Node.Name(), runCtx.Err())
	}
}

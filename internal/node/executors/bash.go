package executors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

const defaultBashTimeout = 30 * time.Second

// Bash runs a user-authored shell snippet via the host's /bin/sh after
// interpolating its references, with the node's inputMappings exported as
// environment variables. The node's output is the sandbox contract's
// {stdout, stderr, exitCode} triple; a non-zero exit code is a result, not
// a node failure, so downstream conditions can branch on it.
// There is no sandbox beyond the per-run timeout and context cancellation —
// callers are expected to gate who may author bash nodes at a higher layer.
type Bash struct{}

func (Bash) Validate(n domain.Node) error {
	if script, _ := n.Config()["script"].(string); script == "" {
		return fmt.Errorf("bash node %q: script is required", n.Name())
	}
	return nil
}

func (Bash) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	script, _ := in.Config["script"].(string)
	script = in.Resolve(script)

	runCtx, cancel := context.WithTimeout(ctx, configTimeout(in.Config, "timeoutMs", defaultBashTimeout))
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", script)
	cmd.Env = os.Environ()
	for name, value := range inputMappings(in) {
		cmd.Env = append(cmd.Env, name+"="+value)
	}
	if cwd, _ := in.Config["workingDirectory"].(string); cwd != "" {
		cmd.Dir = cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() != nil {
		return node.Output{}, fmt.Errorf("bash node %q: %w", in.Node.Name(), runCtx.Err())
	}
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return node.Output{}, fmt.Errorf("bash node %q: %w: %s", in.Node.Name(), err, stderr.String())
		}
		exitCode = exitErr.ExitCode()
	}
	return node.Output{Data: map[string]any{
		"stdout":   stdout.String(),
		"stderr":   stderr.String(),
		"exitCode": exitCode,
	}}, nil
}

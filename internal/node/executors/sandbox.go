package executors

import (
	"time"

	"github.com/smilemakc/agentflow/internal/node"
)

// configTimeout reads a millisecond timeout out of a node config, accepting
// both the float64 a JSON decode produces and the int a hand-built config
// map carries.
func configTimeout(cfg map[string]any, key string, fallback time.Duration) time.Duration {
	switch v := cfg[key].(type) {
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	}
	return fallback
}

// inputMappings resolves the node's configured inputMappings — variable
// name -> reference template — against the current upstream outputs. The
// bash executor injects these as environment variables, the javascript
// executor as VM globals.
func inputMappings(in node.Input) map[string]string {
	raw, _ := in.Config["inputMappings"].(map[string]any)
	out := make(map[string]string, len(raw))
	for name, v := range raw {
		if s, ok := v.(string); ok {
			out[name] = in.Resolve(s)
		}
	}
	return out
}

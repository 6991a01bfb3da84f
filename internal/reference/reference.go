// Package reference implements the engine's lazy string-level interpolation
// of "{{NodeName.field.path[0]}}"-shaped tokens against upstream node
// outputs. Resolution never fails the workflow: an unresolvable token is
// left verbatim so that partial data is still visible to the user.
package reference

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
)

// tokenPattern matches "{{Name}}", "{{Name.field}}", "{{Name.field[2].x}}".
// Name and each path segment are restricted to identifier characters;
// indices are bracketed integers.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)((?:\.[A-Za-z0-9_\-]+|\[[0-9]+\])*)\s*\}\}`)

// Lookup resolves a node name to its current output value. The reference
// resolver is read-only over this map — it is the scheduler's published
// snapshot of completed node outputs.
type Lookup func(nodeName string) (any, bool)

// Resolve walks s and replaces every well-formed token with the
// JSON-stringified (if non-scalar) value it resolves to. Tokens that don't
// resolve — unknown node name, path miss, index out of range — are left
// untouched in the output.
func Resolve(s string, lookup Lookup) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		m := tokenPattern.FindStringSubmatch(tok)
		if m == nil {
			return tok
		}
		name, path := m[1], m[2]
		root, ok := lookup(name)
		if !ok {
			return tok
		}
		val, ok := resolvePath(root, path)
		if !ok {
			return tok
		}
		return stringify(val)
	})
}

// FindReferences returns the set of node names referenced by s, used by
// the validator and evolution edge-inference as a hint — never as a
// substitute for explicit edges.
func FindReferences(s string) []string {
	matches := tokenPattern.FindAllStringSubmatch(s, -1)
	seen := make(map[string]struct{}, len(matches))
	var names []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// segmentPattern splits a token path into its field and index segments,
// e.g. ".field[2].x" -> field, 2, x.
var segmentPattern = regexp.MustCompile(`\.([A-Za-z0-9_\-]+)|\[([0-9]+)\]`)

// resolvePath navigates root using a dotted/bracketed path via gojq,
// falling back to "value itself" when path is empty. gojq's jq-compatible
// semantics yield null for a missing key or out-of-range index, which would
// read as "resolved to nothing" and replace the token with an empty string;
// the filter built here guards every step with an explicit existence check
// so a path miss errors out and the token stays verbatim instead.
func resolvePath(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}

	var filter strings.Builder
	filter.WriteString(".")
	for _, m := range segmentPattern.FindAllStringSubmatch(path, -1) {
		if m[1] != "" {
			fmt.Fprintf(&filter, ` | if (type == "object" and has(%q)) then .[%q] else error("no such field") end`, m[1], m[1])
		} else {
			fmt.Fprintf(&filter, ` | if (type == "array" and length > %s) then .[%s] else error("index out of range") end`, m[2], m[2])
		}
	}

	query, err := gojq.Parse(filter.String())
	if err != nil {
		return nil, false
	}
	iter := query.Run(root)
	v, ok := iter.Next()
	if !ok {
		return nil, false
	}
	if _, isErr := v.(error); isErr {
		return nil, false
	}
	return v, true
}

// stringify renders scalars as their natural textual form and everything
// else (maps, slices, nested structures) as compact JSON, per the token
// grammar's "JSON-stringify non-scalars" rule.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

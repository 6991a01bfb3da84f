// Package schema is the read-only registry of per-node-type property
// metadata. It is the source of truth consulted by evolution mutation
// checks (internal/evolution); the structural workflow validator
// (internal/validate) does not read it. Nothing here ever mutates at runtime.
package schema

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/smilemakc/agentflow/internal/domain"
)

// PropertyType tags the UI/validation shape of a single configurable
// property on a node type.
type PropertyType string

const (
	PropertyString            PropertyType = "string"
	PropertyNumber            PropertyType = "number"
	PropertyBoolean           PropertyType = "boolean"
	PropertySelect            PropertyType = "select"
	PropertyMultiSelect       PropertyType = "multiselect"
	PropertyTextarea          PropertyType = "textarea"
	PropertyCode              PropertyType = "code"
	PropertyReference         PropertyType = "reference"
	PropertyConditionRules    PropertyType = "conditionRules"
	PropertyInputSelector     PropertyType = "inputSelector"
	PropertyMCPServerSelector PropertyType = "mcp-server-selector"
	PropertySchemaBuilder     PropertyType = "schemaBuilder"
	PropertyGroup             PropertyType = "group"
	PropertyArray             PropertyType = "array"
)

// Property describes one configurable field of a node's data payload.
type Property struct {
	Name     string
	Display  string
	Type     PropertyType
	Required bool
	Options  []string // for select/multiselect
	ShowWhen string   // expr-lang boolean expression over sibling property values; "" means always shown

	// For PropertyGroup/PropertyArray: the nested property set. For
	// PropertyArray this describes the shape of one element.
	Properties []Property
}

// IOPort describes one declared input or output slot of a node type. It is
// declarative metadata only: no code in this module reads a schema's
// Inputs or Outputs.
type IOPort struct {
	Name        string
	Description string
}

// NodeSchema is the full registered shape of one node type.
type NodeSchema struct {
	Type       domain.NodeType
	Properties []Property
	Inputs     []IOPort
	Outputs    []IOPort
	Deletable  bool
	Hidden     bool
}

// Registry is the read-only set of all registered node schemas, keyed by
// NodeType. It is built once at startup from Default() and never mutated
// afterward; evolution and validation both treat it as immutable data.
type Registry struct {
	byType map[domain.NodeType]NodeSchema
}

// NewRegistry builds a Registry from a slice of schemas, rejecting
// duplicate types.
func NewRegistry(schemas []NodeSchema) (*Registry, error) {
	byType := make(map[domain.NodeType]NodeSchema, len(schemas))
	for _, s := range schemas {
		if _, exists := byType[s.Type]; exists {
			return nil, fmt.Errorf("duplicate schema registered for node type %q", s.Type)
		}
		byType[s.Type] = s
	}
	return &Registry{byType: byType}, nil
}

// Get returns the schema for a node type and whether it is registered.
func (r *Registry) Get(t domain.NodeType) (NodeSchema, bool) {
	s, ok := r.byType[t]
	return s, ok
}

// MustGet panics if t is unregistered; reserved for code paths already
// guarded by an earlier Get/validate call.
func (r *Registry) MustGet(t domain.NodeType) NodeSchema {
	s, ok := r.byType[t]
	if !ok {
		panic(fmt.Sprintf("schema: node type %q not registered", t))
	}
	return s
}

// FindProperty locates a (possibly nested, group/array-qualified) property
// by dotted path, e.g. "retry.maxAttempts" or "tools[0].name".
func (s NodeSchema) FindProperty(name string) (Property, bool) {
	p, err := s.ResolvePath(SplitPath(name))
	return p, err == nil
}

// ResolvePath resolves a pre-split path to the property it addresses,
// descending through a group's nested properties and an array's element
// shape. A numeric segment is only legal immediately inside an array
// property; a path that ends on the index itself resolves to the array
// property (the element has no distinct Property of its own).
func (s NodeSchema) ResolvePath(path []string) (Property, error) {
	if len(path) == 0 {
		return Property{}, fmt.Errorf("empty property path")
	}

	props := s.Properties
	var cur Property
	resolved := false
	for _, seg := range path {
		if isIndexSegment(seg) {
			if !resolved || cur.Type != PropertyArray {
				return Property{}, fmt.Errorf("index %q is only valid inside an array property", seg)
			}
			// Descend into the element shape; cur stays the array property
			// until a named segment picks a field of the element.
			props = cur.Properties
			continue
		}
		p, ok := findProperty(props, seg)
		if !ok {
			return Property{}, fmt.Errorf("no property %q", seg)
		}
		cur, resolved = p, true
		switch p.Type {
		case PropertyGroup:
			props = p.Properties
		default:
			// Scalars end the descent; arrays require an index segment
			// before their element fields become addressable.
			props = nil
		}
	}
	return cur, nil
}

// ResolvePath resolves a property path for a node type by looking up its
// registered schema and delegating to NodeSchema.ResolvePath.
func (r *Registry) ResolvePath(t domain.NodeType, path []string) (Property, error) {
	s, ok := r.Get(t)
	if !ok {
		return Property{}, fmt.Errorf("node type %q not registered", t)
	}
	return s.ResolvePath(path)
}

// SplitPath breaks a dotted/bracket-indexed path into its segments:
// "tools[0].name" -> ["tools", "0", "name"].
func SplitPath(path string) []string {
	normalized := strings.NewReplacer("[", ".", "]", "").Replace(path)
	var segs []string
	for _, s := range strings.Split(normalized, ".") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func isIndexSegment(seg string) bool {
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return seg != ""
}

func findProperty(props []Property, name string) (Property, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Visible evaluates a property's ShowWhen predicate against the sibling
// values already set on a node's config. A property with no predicate is
// always visible.
func Visible(p Property, siblings map[string]any) (bool, error) {
	if p.ShowWhen == "" {
		return true, nil
	}
	program, err := expr.Compile(p.ShowWhen, expr.Env(siblings), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("showWhen %q: compile: %w", p.ShowWhen, err)
	}
	out, err := expr.Run(program, siblings)
	if err != nil {
		return false, fmt.Errorf("showWhen %q: eval: %w", p.ShowWhen, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("showWhen %q: result was not bool", p.ShowWhen)
	}
	return result, nil
}

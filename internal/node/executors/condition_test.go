package executors

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

func identityResolve(s string) string { return s }

func runCondition(t *testing.T, rules []any, combinator string) node.Output {
	t.Helper()
	cfg := map[string]any{"rules": rules}
	if combinator != "" {
		cfg["combinator"] = combinator
	}
	out, err := Condition{}.Execute(context.Background(), node.Input{
		Config:  cfg,
		Resolve: identityResolve,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return out
}

func rule(left, op, right string) map[string]any {
	return map[string]any{"left": left, "operator": op, "right": right}
}

func TestConditionValidateRequiresRules(t *testing.T) {
	n := domain.NewNode(uuid.New(), domain.NodeTypeCondition, "Cond", map[string]any{}, domain.Position{})
	if err := (Condition{}).Validate(n); err == nil {
		t.Fatal("expected error for missing rules")
	}
}

func TestConditionNumericOperators(t *testing.T) {
	cases := []struct {
		op       string
		l, r     string
		expected bool
	}{
		{"equals", "5", "5", true},
		{"equals", "5", "6", false},
		{"not_equals", "5", "6", true},
		{"greater_than", "10", "2", true},  // numeric, not lexicographic
		{"greater_than", "2", "10", false},
		{"less_than", "2", "10", true},
		{"greater_than_or_equals", "5", "5", true},
		{"less_than_or_equals", "5", "5", true},
	}
	for _, c := range cases {
		out := runCondition(t, []any{rule(c.l, c.op, c.r)}, "")
		matched := out.Data.(map[string]any)["matched"].(bool)
		if matched != c.expected {
			t.Errorf("%s(%s,%s): got %v want %v", c.op, c.l, c.r, matched, c.expected)
		}
	}
}

func TestConditionLexicographicFallback(t *testing.T) {
	// Non-numeric strings fall back to lexicographic comparison.
	out := runCondition(t, []any{rule("apple", "less_than", "banana")}, "")
	if !out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected apple < banana lexicographically")
	}
}

func TestConditionContainsAndNotContains(t *testing.T) {
	out := runCondition(t, []any{rule("hello world", "contains", "world")}, "")
	if !out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected contains match")
	}
	out = runCondition(t, []any{rule("hello world", "not_contains", "xyz")}, "")
	if !out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected not_contains match")
	}
}

func TestConditionEmptyOperators(t *testing.T) {
	out := runCondition(t, []any{rule("", "is_empty", "")}, "")
	if !out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected is_empty match")
	}
	out = runCondition(t, []any{rule("x", "is_not_empty", "")}, "")
	if !out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected is_not_empty match")
	}
}

func TestConditionRegex(t *testing.T) {
	out := runCondition(t, []any{rule("xyz123", "regex", `^[a-z]+[0-9]+$`)}, "")
	if !out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected regex match")
	}
}

func TestConditionCombinatorAnd(t *testing.T) {
	rules := []any{rule("5", "equals", "5"), rule("1", "equals", "2")}
	out := runCondition(t, rules, "and")
	if out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected and-combined rules to fail")
	}
	if out.Handle != "false" {
		t.Fatalf("expected false handle, got %q", out.Handle)
	}
}

func TestConditionCombinatorOr(t *testing.T) {
	rules := []any{rule("5", "equals", "6"), rule("1", "equals", "1")}
	out := runCondition(t, rules, "or")
	if !out.Data.(map[string]any)["matched"].(bool) {
		t.Fatal("expected or-combined rules to succeed")
	}
	if out.Handle != "true" {
		t.Fatalf("expected true handle, got %q", out.Handle)
	}
}

func TestConditionUnknownOperatorErrors(t *testing.T) {
	_, err := Condition{}.Execute(context.Background(), node.Input{
		Config:  map[string]any{"rules": []any{rule("a", "bogus", "b")}},
		Resolve: identityResolve,
	})
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

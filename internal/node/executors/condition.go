package executors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

// Condition evaluates a list of (left, operator, right) rules combined by
// a single "and"/"or" combinator, resolving both sides through the sibling
// reference resolver before comparing. The chosen Output.Handle ("true" or
// "false") is what branch pruning downstream keys off of.
type Condition struct{}

func (Condition) Validate(n domain.Node) error {
	rules, _ := n.Config()["rules"].([]any)
	if len(rules) == 0 {
		return fmt.Errorf("condition node %q: at least one rule is required", n.Name())
	}
	return nil
}

func (Condition) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	rawRules, _ := in.Config["rules"].([]any)
	combinator, _ := in.Config["combinator"].(string)
	if combinator == "" {
		combinator = "and"
	}

	result := strings.EqualFold(combinator, "and")
	for _, raw := range rawRules {
		rule, _ := raw.(map[string]any)
		left := in.Resolve(asString(rule["left"]))
		operator := asString(rule["operator"])
		right := in.Resolve(asString(rule["right"]))

		matched, err := evalRule(left, operator, right)
		if err != nil {
			return node.Output{}, fmt.Errorf("condition node: %w", err)
		}

		if strings.EqualFold(combinator, "and") {
			result = result && matched
		} else {
			result = result || matched
		}
	}

	handle := "false"
	if result {
		handle = "true"
	}
	return node.Output{Data: map[string]any{"matched": result}, Handle: handle}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// evalRule compares left/right: numerically if both sides parse as
// float64, falling back to lexicographic string comparison otherwise.
func evalRule(left, operator, right string) (bool, error) {
	switch operator {
	case "equals":
		return compare(left, right) == 0, nil
	case "not_equals":
		return compare(left, right) != 0, nil
	case "greater_than":
		return compare(left, right) > 0, nil
	case "greater_than_or_equals":
		return compare(left, right) >= 0, nil
	case "less_than":
		return compare(left, right) < 0, nil
	case "less_than_or_equals":
		return compare(left, right) <= 0, nil
	case "contains":
		return strings.Contains(left, right), nil
	case "not_contains":
		return !strings.Contains(left, right), nil
	case "is_empty":
		return left == "", nil
	case "is_not_empty":
		return left != "", nil
	case "regex":
		re, err := regexp.Compile(right)
		if err != nil {
			return false, fmt.Errorf("invalid regexp %q: %w", right, err)
		}
		return re.MatchString(left), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", operator)
	}
}

// compare returns <0, 0, >0. Both sides are parsed as numbers when both
// parse cleanly; otherwise the comparison falls back to lexicographic.
func compare(left, right string) int {
	lf, lerr := strconv.ParseFloat(left, 64)
	rf, rerr := strconv.ParseFloat(right, 64)
	if lerr == nil && rerr == nil {
		switch {
		case lf < rf:
			return -1
		case lf > rf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(left, right)
}

package rules

import "strings"

// comparator is the strategy for a single operator.
// actual is the property value (never nil), expected is the condition value.
type comparator func(actual, expected any) bool

// comparators maps each supported operator to its strategy.
// Unknown operators have no entry and never match.
var comparators = map[Operator]comparator{
	OpEq:       equal,
	OpNeq:      func(a, e any) bool { return !equal(a, e) },
	OpGt:       numeric(func(a, e float64) bool { return a > e }),
	OpGte:      numeric(func(a, e float64) bool { return a >= e }),
	OpLt:       numeric(func(a, e float64) bool { return a < e }),
	OpLte:      numeric(func(a, e float64) bool { return a <= e }),
	OpContains: contains,
	OpIn:       in,
}

// Evaluate reports whether every condition holds for props.
// An empty list imposes no constraint. A condition on a field that is
// absent from props fails regardless of its operator (fail closed).
func Evaluate(conditions []Condition, props Properties) bool {
	for _, c := range conditions {
		if !Match(c, props) {
			return false
		}
	}
	return true
}

// Match evaluates a single condition against props.
func Match(c Condition, props Properties) bool {
	actual, ok := props[c.Field]
	if !ok || actual == nil {
		return false
	}

	cmp, ok := comparators[c.Operator]
	if !ok {
		return false
	}

	return cmp(actual, c.Value)
}

// equal implements value equality without coercion: numbers compare by value
// whatever their Go kind, everything else must share type and value.
func equal(actual, expected any) bool {
	if a, ok := toFloat(actual); ok {
		e, ok := toFloat(expected)
		return ok && a == e
	}

	switch a := actual.(type) {
	case string:
		e, ok := expected.(string)
		return ok && a == e
	case bool:
		e, ok := expected.(bool)
		return ok && a == e
	}

	return false
}

// numeric builds an ordering comparator that only matches when both sides are numbers.
func numeric(cmp func(a, e float64) bool) comparator {
	return func(actual, expected any) bool {
		a, ok := toFloat(actual)
		if !ok {
			return false
		}
		e, ok := toFloat(expected)
		if !ok {
			return false
		}
		return cmp(a, e)
	}
}

func contains(actual, expected any) bool {
	a, ok := actual.(string)
	if !ok {
		return false
	}
	e, ok := expected.(string)
	if !ok {
		return false
	}
	return strings.Contains(a, e)
}

// in tests membership of the property value in the condition's string list.
// Only string properties can be members.
func in(actual, expected any) bool {
	a, ok := actual.(string)
	if !ok {
		return false
	}

	list, ok := stringList(expected)
	if !ok {
		return false
	}

	for _, item := range list {
		if item == a {
			return true
		}
	}
	return false
}

// stringList normalizes the two shapes a list value can take:
// []string when built in Go, []any when decoded from JSON.
func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// toFloat converts any Go numeric kind to float64.
// Strings are deliberately not parsed.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

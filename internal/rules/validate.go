package rules

import (
	"errors"
	"fmt"
)

const (
	// MaxConditions limits the size of a single rule set.
	// Rule sets are AND-only, so long lists are almost always a modelling mistake.
	MaxConditions = 50

	// MaxInListSize limits the number of values of an "in" condition.
	MaxInListSize = 1_000
)

// ErrInvalidCondition is wrapped by every validation failure.
var ErrInvalidCondition = errors.New("invalid condition")

// Validate checks a rule set before it is persisted.
// Evaluation never fails, so this is the only place malformed rules are rejected.
func Validate(conditions []Condition) error {
	if len(conditions) > MaxConditions {
		return fmt.Errorf("%w: rule set exceeds maximum size: %d > %d", ErrInvalidCondition, len(conditions), MaxConditions)
	}

	for i, c := range conditions {
		if err := validateCondition(c); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

func validateCondition(c Condition) error {
	if c.Field == "" {
		return fmt.Errorf("%w: field is required", ErrInvalidCondition)
	}

	if _, ok := comparators[c.Operator]; !ok {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, c.Operator)
	}

	if c.Operator == OpIn {
		list, ok := stringList(c.Value)
		if !ok {
			return fmt.Errorf("%w: operator \"in\" requires a list of strings", ErrInvalidCondition)
		}
		if len(list) > MaxInListSize {
			return fmt.Errorf("%w: list exceeds maximum size: %d > %d", ErrInvalidCondition, len(list), MaxInListSize)
		}
		return nil
	}

	switch c.Value.(type) {
	case string, bool:
		return nil
	case []string, []any:
		if _, ok := stringList(c.Value); ok {
			return nil
		}
	default:
		if _, ok := toFloat(c.Value); ok {
			return nil
		}
	}

	return fmt.Errorf("%w: value must be a string, number, boolean or list of strings", ErrInvalidCondition)
}

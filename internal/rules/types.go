// Package rules implements the condition language used by segments and notifications.
// A rule set is a flat list of conditions combined with logical AND and evaluated
// against a single property bag.
package rules

// Operator identifies the comparison a Condition performs.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
)

// Condition is a single targeting predicate.
// It mirrors the JSON stored in the notifications/segments tables and sent to SDKs.
type Condition struct {
	// Field is the property name looked up in the bag.
	Field string `json:"field"`

	// Operator selects the comparison strategy.
	Operator Operator `json:"operator"`

	// Value is a string, a number, a boolean or (for OpIn) a list of strings.
	// After JSON decoding numbers are float64 and lists are []any.
	Value any `json:"value"`
}

// Properties is the flat user property bag conditions are evaluated against.
// Values are strings, numbers or booleans.
type Properties map[string]any

// Package validation holds constructor contract checks.
package validation

// AssertNotNil panics with "<what> cannot be nil" when ptr is nil. what is
// conventionally prefixed with the package name, e.g. "store: database pool".
//
// Reserved for programmer errors in constructors; runtime failures are
// returned as errors.
func AssertNotNil[T any](ptr *T, what string) {
	if ptr == nil {
		panic(what + " cannot be nil")
	}
}

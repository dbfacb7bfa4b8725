package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/herald/internal/validation"
)

func TestAssertNotNil(t *testing.T) {
	t.Parallel()

	t.Run("Should panic with the component name", func(t *testing.T) {
		var p *int
		assert.PanicsWithValue(t, "store: database pool cannot be nil", func() {
			validation.AssertNotNil(p, "store: database pool")
		})
	})

	t.Run("Should accept a non-nil pointer", func(t *testing.T) {
		v := 1
		assert.NotPanics(t, func() {
			validation.AssertNotNil(&v, "test: value")
		})
	})
}

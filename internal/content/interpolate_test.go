package content

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
)

func TestInterpolate(t *testing.T) {
	t.Parallel()

	uc := model.UserContext{
		UserID: "u-42",
		Locale: "pt-BR",
		Properties: rules.Properties{
			"name":    "Ana",
			"streak":  float64(7),
			"score":   9.5,
			"premium": true,
			"visits":  12,
			"tags":    []any{"a", "b"},
			"empty":   "",
			"missing": nil,
		},
	}

	tests := []struct {
		name string
		text string
		uc   model.UserContext
		want string
	}{
		{
			name: "Should leave text without placeholders untouched",
			text: "Hello there",
			uc:   uc,
			want: "Hello there",
		},
		{
			name: "Should resolve built-in tokens",
			text: "{{userId}} / {{locale}}",
			uc:   uc,
			want: "u-42 / pt-BR",
		},
		{
			name: "Should blank built-in tokens when unset",
			text: "[{{userId}}][{{locale}}]",
			uc:   model.UserContext{},
			want: "[][]",
		},
		{
			name: "Should resolve properties of every scalar type",
			text: "{{name}} {{streak}} {{score}} {{premium}} {{visits}}",
			uc:   uc,
			want: "Ana 7 9.5 true 12",
		},
		{
			name: "Should join list properties with commas",
			text: "{{tags}}",
			uc:   uc,
			want: "a,b",
		},
		{
			name: "Should substitute an empty string property",
			text: "<{{empty}}>",
			uc:   uc,
			want: "<>",
		},
		{
			name: "Should leave unresolved tokens verbatim",
			text: "Hi {{nickname}}",
			uc:   model.UserContext{},
			want: "Hi {{nickname}}",
		},
		{
			name: "Should treat null properties as unresolved",
			text: "Hi {{missing}}",
			uc:   uc,
			want: "Hi {{missing}}",
		},
		{
			name: "Should replace repeated tokens",
			text: "{{name}}, {{name}}!",
			uc:   uc,
			want: "Ana, Ana!",
		},
		{
			name: "Should ignore tokens with non-word characters",
			text: "{{first-name}} {{ name }}",
			uc:   uc,
			want: "{{first-name}} {{ name }}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Interpolate(tt.text, tt.uc))
		})
	}
}

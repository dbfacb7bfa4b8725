// Package content prepares the user-visible text of a notification:
// locale selection, placeholder interpolation and the final device payload.
package content

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rafaeljc/herald/internal/model"
)

// placeholder matches {{identifier}} where identifier is made of word characters.
var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate replaces every {{token}} in text using uc.
//
//   - {{userId}} and {{locale}} resolve to the context fields, or "" when unset.
//   - Any other token resolves to the matching property.
//   - Tokens with no matching property are left in place, so a misconfigured
//     template is visible on the device instead of silently blanked.
func Interpolate(text string, uc model.UserContext) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	return placeholder.ReplaceAllStringFunc(text, func(token string) string {
		key := token[2 : len(token)-2]

		switch key {
		case "userId":
			return uc.UserID
		case "locale":
			return uc.Locale
		}

		value, ok := uc.Properties[key]
		if !ok || value == nil {
			return token
		}
		return Stringify(value)
	})
}

// Stringify formats a property value for display.
// Floats use the shortest representation, so 3.0 renders as "3".
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

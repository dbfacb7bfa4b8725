package content

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/rafaeljc/herald/internal/model"
)

// Localize returns the title and body to show for locale.
//
// The override is chosen with BCP 47 matching, so "pt-BR" picks a "pt" override
// when no exact entry exists. Each field falls back to the default text on its own
// when the override leaves it empty.
func Localize(n model.Notification, locale string) (title, body string) {
	title, body = n.Title, n.Body

	override, ok := matchLocale(n.Locales, locale)
	if !ok {
		return title, body
	}

	if override.Title != "" {
		title = override.Title
	}
	if override.Body != "" {
		body = override.Body
	}
	return title, body
}

func matchLocale(locales map[string]model.LocalizedText, locale string) (model.LocalizedText, bool) {
	if locale == "" || len(locales) == 0 {
		return model.LocalizedText{}, false
	}

	if text, ok := locales[locale]; ok {
		return text, true
	}

	desired, err := language.Parse(locale)
	if err != nil {
		return model.LocalizedText{}, false
	}

	// Sorted so the matcher sees a stable preference order.
	codes := make([]string, 0, len(locales))
	for code := range locales {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	supported := make([]language.Tag, 0, len(codes))
	parsed := make([]string, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		supported = append(supported, tag)
		parsed = append(parsed, code)
	}
	if len(supported) == 0 {
		return model.LocalizedText{}, false
	}

	// The matcher always returns a fallback; only accept confident matches.
	_, idx, confidence := language.NewMatcher(supported).Match(desired)
	if confidence < language.High {
		return model.LocalizedText{}, false
	}

	return locales[parsed[idx]], true
}

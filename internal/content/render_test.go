package content

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
)

func TestLocalize(t *testing.T) {
	t.Parallel()

	n := model.Notification{
		Title: "Hello",
		Body:  "Welcome back",
		Locales: map[string]model.LocalizedText{
			"pt":    {Title: "Olá", Body: "Bem-vindo de volta"},
			"es-MX": {Title: "Hola"},
			"xx-!!": {Title: "broken"},
		},
	}

	tests := []struct {
		name      string
		locale    string
		wantTitle string
		wantBody  string
	}{
		{name: "no locale", locale: "", wantTitle: "Hello", wantBody: "Welcome back"},
		{name: "exact key", locale: "pt", wantTitle: "Olá", wantBody: "Bem-vindo de volta"},
		{name: "regional variant matches base language", locale: "pt-BR", wantTitle: "Olá", wantBody: "Bem-vindo de volta"},
		{name: "partial override falls back per field", locale: "es-MX", wantTitle: "Hola", wantBody: "Welcome back"},
		{name: "unsupported language keeps defaults", locale: "de", wantTitle: "Hello", wantBody: "Welcome back"},
		{name: "unparseable locale keeps defaults", locale: "!!", wantTitle: "Hello", wantBody: "Welcome back"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			title, body := Localize(n, tt.locale)

			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	badge := 3

	t.Run("Should localize then interpolate and pass payload through", func(t *testing.T) {
		t.Parallel()

		n := model.Notification{
			Title:    "Hi {{name}}",
			Body:     "Your streak is {{streak}}",
			Locales:  map[string]model.LocalizedText{"pt": {Title: "Oi {{name}}"}},
			Data:     map[string]any{"deepLink": "app://streak"},
			Sound:    "chime.wav",
			Badge:    &badge,
			Priority: model.PriorityHigh,
		}
		uc := model.UserContext{Locale: "pt-BR", Properties: rules.Properties{"name": "Ana", "streak": 4.0}}

		got := Render(n, uc)

		assert.Equal(t, "Oi Ana", got.Title)
		assert.Equal(t, "Your streak is 4", got.Body)
		assert.Equal(t, map[string]any{"deepLink": "app://streak"}, got.Data)
		assert.Equal(t, "chime.wav", got.Sound)
		assert.Same(t, &badge, got.Badge)
		assert.Equal(t, model.PriorityHigh, got.Priority)
	})

	t.Run("Should default sound and priority", func(t *testing.T) {
		t.Parallel()

		got := Render(model.Notification{Title: "t", Body: "b"}, model.UserContext{})

		assert.Equal(t, DefaultSound, got.Sound)
		assert.Equal(t, model.PriorityDefault, got.Priority)
		assert.Nil(t, got.Badge)
	})
}

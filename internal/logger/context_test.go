package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("Should return the stored logger", func(t *testing.T) {
		want := slog.New(slog.NewJSONHandler(io.Discard, nil))

		got := FromContext(WithContext(context.Background(), want))

		assert.Same(t, want, got)
	})

	t.Run("Should fall back to the default logger", func(t *testing.T) {
		assert.Same(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("Should enrich the stored logger", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithContext(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

		ctx = With(ctx, slog.String("request_id", "r-1"))
		FromContext(ctx).Info("handled")

		assert.Contains(t, buf.String(), "request_id=r-1")
	})
}

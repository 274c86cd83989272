package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_RedactsSecretShapedValues(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{
		inner:  slog.New(slog.NewJSONHandler(&buf, nil)),
		redact: DefaultRedactPatterns,
	}

	l.Info(context.Background(), "provider configured", "detail", "api_key=sk-sup3rsecret endpoint=local")

	out := buf.String()
	require.NotContains(t, out, "sk-sup3rsecret")
	require.Contains(t, out, "[redacted]")
}

func TestLogger_AppendsCorrelationIDsFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{inner: slog.New(slog.NewJSONHandler(&buf, nil))}

	ctx := context.WithValue(context.Background(), SessionIDKey, "sess-42")
	ctx = context.WithValue(ctx, TurnIDKey, "turn-7")
	l.Info(ctx, "turn started")

	out := buf.String()
	require.Contains(t, out, `"session_id":"sess-42"`)
	require.Contains(t, out, `"turn_id":"turn-7"`)
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	ctx := SetContextValue(context.Background(), OrgIDKey, "org-1")
	ctx = SetContextValue(ctx, RunIDKey, "run-9")

	log.WithContext(ctx).Info("run finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "org-1", entry["org_id"])
	assert.Equal(t, "run-9", entry["run_id"])
	assert.NotContains(t, entry, "request_id")
}

func TestWithContext_NoValuesReturnsSameLogger(t *testing.T) {
	log := Nop()
	assert.Same(t, log, log.WithContext(context.Background()))
}

func TestWithError_Nil(t *testing.T) {
	log := Nop()
	assert.Same(t, log, log.WithError(nil))
}

func TestContextGetters(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetOrgID(ctx))
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetRequestID(ctx))

	ctx = SetContextValue(ctx, RequestIDKey, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

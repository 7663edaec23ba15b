package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentSavings})

	logger.Info("deposit", FieldSavingsID, "sav001")
	m := decode(t, &buf)
	assert.Equal(t, ComponentSavings, m[FieldComponent])
	assert.Equal(t, "sav001", m[FieldSavingsID])

	buf.Reset()
	logger.WithComponent(ComponentAMQP).Warn("reconnecting")
	assert.Equal(t, ComponentAMQP, decode(t, &buf)[FieldComponent])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})
	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Error("shown")
	assert.NotZero(t, buf.Len())
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, "req-1", decode(t, &buf)[FieldRequestID])
}

func TestFromContextFallsBack(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, ComponentApp, logger.Component())
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	r := httptest.NewRequest(http.MethodPost, "/savings/sav001/withdraw", nil)

	sl.LogHTTPEnd(context.Background(), r, http.StatusConflict, 12, "10.0.0.1")
	m := decode(t, &buf)
	assert.Equal(t, "WARN", m["level"])
	assert.Equal(t, false, m[FieldSuccess])

	buf.Reset()
	sl.LogError(context.Background(), "insert failed", errors.New("disk full"), ComponentStorage, OpCreate, nil)
	m = decode(t, &buf)
	assert.Equal(t, "disk full", m[FieldError])
	assert.Equal(t, ComponentStorage, m[FieldComponent])
}

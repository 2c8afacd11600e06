package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	return New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestInfoIncludesServiceName(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	logg.Info(context.Background(), "hello")

	entry := lastLine(t, &buf)
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "hello", entry["message"])
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	ctx := logg.WithTransactionID(context.Background(), "txn-123")
	ctx = logg.WithRegisterID(ctx, "reg-7")
	logg.Info(ctx, "payment accepted")

	entry := lastLine(t, &buf)
	assert.Equal(t, "txn-123", entry["transaction_id"])
	assert.Equal(t, "reg-7", entry["register_id"])
}

func TestErrorIncludesErrAndStack(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	logg.Error(context.Background(), "boom", errors.New("terminal offline"))

	entry := lastLine(t, &buf)
	assert.Equal(t, "terminal offline", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

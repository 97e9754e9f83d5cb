package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/blueledger/tally-go/internal/tally/contextx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "WARN", "text")

	logger.Info(context.Background(), "dropped")
	logger.Warn(context.Background(), "kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestTextFormatIncludesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "INFO", "text")

	ctx := contextx.WithRequestID(context.Background(), "r1")
	ctx = contextx.WithUserID(ctx, "u1")
	ctx = contextx.WithSessionID(ctx, "s1")
	logger.Info(ctx, "hello", KV("k", "v"))

	out := buf.String()
	assert.Contains(t, out, "[r1]")
	assert.Contains(t, out, "user:u1")
	assert.Contains(t, out, "session:s1")
	assert.Contains(t, out, "k=v")
}

func TestTextFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "INFO", "text")

	logger.Info(context.Background(), "msg", KV("zebra", 1), KV("alpha", 2))

	out := buf.String()
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "zebra"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "INFO", "json")

	ctx := contextx.WithRequestID(context.Background(), "r1")
	logger.Error(ctx, "boom", KV("code", 500))

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "boom", entry.Message)
	assert.Equal(t, "r1", entry.RequestID)
	assert.Equal(t, float64(500), entry.Fields["code"])
}

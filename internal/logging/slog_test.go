package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))), &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := jsonLogger(slog.LevelInfo)
	ctx := context.Background()

	log.Debug(ctx, "lookup started")
	log.Info(ctx, "entry appended", "epoch", 1)
	log.Warn(ctx, "chain broken", "index", 3)
	log.Error(ctx, "seal failed", "error", "disk full")

	recs := records(t, buf)
	require.Len(t, recs, 3)
	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "entry appended", recs[0]["msg"])
	assert.Equal(t, float64(1), recs[0]["epoch"])
	assert.Equal(t, "WARN", recs[1]["level"])
	assert.Equal(t, "ERROR", recs[2]["level"])
	assert.Equal(t, "disk full", recs[2]["error"])
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := jsonLogger(slog.LevelDebug)

	child := log.With("worker", "w1")
	child.Info(context.Background(), "checked in", "entry", 7)
	log.Info(context.Background(), "plain")

	recs := records(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "w1", recs[0]["worker"])
	assert.Equal(t, float64(7), recs[0]["entry"])
	assert.NotContains(t, recs[1], "worker")
}

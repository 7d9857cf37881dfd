package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewWritesJSONWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("connected", "adapter", "sqlite")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "connected", rec["msg"])
	assert.Equal(t, "sqlite", rec["adapter"])
	assert.NotEmpty(t, rec["session"])
}

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	logger, closer, err := Open(dir, slog.LevelDebug)
	require.NoError(t, err)
	logger.Debug("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"f1.db", "f1.db"},
		{":memory:", ":memory:"},
		{"postgres://bob:hunter2@db:5432/prod", "postgres://bob:xxxxx@db:5432/prod"},
		{"postgres://bob@db/prod", "postgres://bob@db/prod"},
		{"host=db user=bob password=hunter2 dbname=prod", "host=db user=bob password=xxxxx dbname=prod"},
		{"root:secret@tcp(localhost:3306)/app", "root:xxxxx@tcp(localhost:3306)/app"},
		{"root@tcp(localhost:3306)/app", "root@tcp(localhost:3306)/app"},
		{"md:?motherduck_token=abc123&saas_mode=true", "md:?motherduck_token=xxxxx&saas_mode=true"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.in))
		})
	}
	assert.Equal(t, []string{"a.db", "postgres://u:xxxxx@h/d"}, RedactAll([]string{"a.db", "postgres://u:p@h/d"}))
}

package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger_Fanout_To_File(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "chat-search.log")

	logger, closeFile := NewLogger("DEBUG", path)
	logger.Debug("Message indexed", "id", "m1")
	req.NoError(closeFile())

	content, err := os.ReadFile(path)
	req.NoError(err)
	req.Contains(string(content), `"msg":"Message indexed"`)
	req.Contains(string(content), `"id":"m1"`)
}

func TestNewLogger_Without_File(t *testing.T) {
	req := require.New(t)
	logger, closeFile := NewLogger("INFO", "")
	req.NoError(closeFile())
	req.NotNil(logger)
}

func TestParseLevel(t *testing.T) {
	req := require.New(t)
	req.Equal(slog.LevelDebug, parseLevel("debug"))
	req.Equal(slog.LevelInfo, parseLevel("nonsense"))
}

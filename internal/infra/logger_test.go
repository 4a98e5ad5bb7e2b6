package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevels(t *testing.T) {
	if got := NewLogger("development", "").GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("development level = %s, want debug", got)
	}
	if got := NewLogger("production", "").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("production level = %s, want info", got)
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	logger := NewLogger("production", path)
	logger.Info().Str("campaign_id", "c-1").Msg("hello")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"campaign_id":"c-1"`) {
		t.Fatalf("log file missing entry: %s", raw)
	}
}

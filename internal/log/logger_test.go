package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewParsesLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{" warn ", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := New(tt.level).GetLevel(); got != tt.want {
			t.Errorf("New(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLoggerTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("info", &buf)

	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), "service=pulsechat") {
		t.Fatalf("expected service field in output, got %q", buf.String())
	}
}

func TestLoggerSuppressesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("warn", &buf)

	logger.Info().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info should be suppressed at warn level, got %q", buf.String())
	}

	logger.Warn().Msg("loud")
	if buf.Len() == 0 {
		t.Fatalf("warn should be emitted at warn level")
	}
}

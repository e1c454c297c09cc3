package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caesar-terminal/ladder/internal/config"
)

func TestLevelParsing(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "warn"}, &buf)

	if l.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", l.GetLevel())
	}

	l.Info().Msg("hidden")
	l.Warn().Str("component", "engine").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"component":"engine"`) {
		t.Errorf("expected structured field in output: %s", out)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "loud"}, &buf)

	if l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", l.GetLevel())
	}
}

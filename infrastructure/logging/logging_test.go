package logging

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// testLogger creates a logger that writes to a buffer for testing.
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()

	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stdout {
		t.Errorf("Output = %v, want os.Stdout", config.Output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()

	event := logger.Info()
	event = Backend("anthropic")(event)
	event = Model("claude-sonnet")(event)
	event = CacheKey("k1")(event)
	event = Stage("semantic")(event)
	event = Attempt(2)(event)
	event = Duration(1500 * time.Millisecond)(event)
	event = Cached(true)(event)
	event = ErrorField(errors.New("boom"))(event)
	event.Msg("routed")

	out := buf.String()
	for _, want := range []string{
		`"backend":"anthropic"`,
		`"model":"claude-sonnet"`,
		`"cache_key":"k1"`,
		`"stage":"semantic"`,
		`"attempt":2`,
		`"duration_ms":1500`,
		`"cached":true`,
		"boom",
		"routed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestErrorFieldNil(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()

	event := logger.Info()
	event = ErrorField(nil)(event)
	event.Msg("ok")

	if strings.Contains(buf.String(), "error") {
		t.Errorf("nil error should not add an error field: %s", buf.String())
	}
}

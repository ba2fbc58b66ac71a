package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prismworks/prism/interfaces/cli"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := cli.New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

const baseConfig = `
name: prism
version: "1"
cache:
  enabled: true
  max_entries: 100
backends:
  anthropic:
    enabled: true
    api_key: sk-test
storage:
  kind: memory
`

func TestApp_Version(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "prism version") {
		t.Errorf("version output = %q, want prism version line", out)
	}
}

func TestApp_Validate(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := run(t, "validate", "-c", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "Configuration is valid") {
		t.Errorf("validate output = %q, want valid confirmation", out)
	}
	if !strings.Contains(out, "anthropic") {
		t.Errorf("validate output = %q, want backend summary", out)
	}
}

func TestApp_Validate_Invalid(t *testing.T) {
	path := writeConfig(t, `
name: ""
version: ""
`)

	_, err := run(t, "validate", "-c", path)
	if err == nil {
		t.Error("validate should fail for invalid config")
	}
}

func TestApp_Validate_MissingFlag(t *testing.T) {
	_, err := run(t, "validate")
	if err == nil {
		t.Error("validate should fail without -c flag")
	}
}

func TestApp_Models(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := run(t, "models", "-c", path)
	if err != nil {
		t.Fatalf("models error = %v", err)
	}
	if !strings.Contains(out, "BACKEND") {
		t.Errorf("models output = %q, want table header", out)
	}
	if !strings.Contains(out, "anthropic") {
		t.Errorf("models output = %q, want anthropic models", out)
	}
}

func TestApp_Models_TierFilter(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := run(t, "models", "-c", path, "--tier", "economy")
	if err != nil {
		t.Fatalf("models error = %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		if !strings.Contains(line, "economy") {
			t.Errorf("models line %q not in economy tier", line)
		}
	}
}

func TestApp_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_test",
			"model": "claude-test",
			"content": []map[string]string{
				{"type": "text", "text": "hello from the backend"},
			},
			"usage": map[string]int{"input_tokens": 5, "output_tokens": 7},
		})
	}))
	defer server.Close()

	path := writeConfig(t, fmt.Sprintf(`
name: prism
version: "1"
cache:
  enabled: true
backends:
  anthropic:
    enabled: true
    api_key: sk-test
    base_url: %s
`, server.URL))

	out, err := run(t, "complete", "-c", path, "say", "hello")
	if err != nil {
		t.Fatalf("complete error = %v", err)
	}
	if !strings.Contains(out, "hello from the backend") {
		t.Errorf("complete output = %q, want backend message", out)
	}
}

func TestApp_Complete_BackendDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer server.Close()

	path := writeConfig(t, fmt.Sprintf(`
name: prism
version: "1"
backends:
  anthropic:
    enabled: true
    api_key: sk-bad
    base_url: %s
`, server.URL))

	_, err := run(t, "complete", "-c", path, "hello")
	if err == nil {
		t.Error("complete should fail when the backend rejects the request")
	}
}

func TestApp_CacheStats(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := run(t, "cache", "stats", "-c", path)
	if err != nil {
		t.Fatalf("cache stats error = %v", err)
	}
	if !strings.Contains(out, "Cache statistics") {
		t.Errorf("stats output = %q, want statistics header", out)
	}
	if !strings.Contains(out, "Hit rate") {
		t.Errorf("stats output = %q, want hit rate line", out)
	}
}

func TestApp_CacheStats_Disabled(t *testing.T) {
	path := writeConfig(t, `
name: prism
version: "1"
cache:
  enabled: false
backends:
  anthropic:
    enabled: true
    api_key: sk-test
`)

	_, err := run(t, "cache", "stats", "-c", path)
	if err == nil {
		t.Error("cache stats should fail when the cache is disabled")
	}
}

func TestApp_CacheOptimize(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := run(t, "cache", "optimize", "-c", path)
	if err != nil {
		t.Fatalf("cache optimize error = %v", err)
	}
	if !strings.Contains(out, "Optimization report") {
		t.Errorf("optimize output = %q, want report header", out)
	}
}

func TestApp_CacheInvalidate(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := run(t, "cache", "invalidate", "-c", path, "auth.go")
	if err != nil {
		t.Fatalf("cache invalidate error = %v", err)
	}
	if !strings.Contains(out, "Invalidated 0 entries") {
		t.Errorf("invalidate output = %q, want zero entries on empty cache", out)
	}
}

func TestApp_UnknownCommand(t *testing.T) {
	_, err := run(t, "bogus")
	if err == nil {
		t.Error("unknown command should return an error")
	}
}

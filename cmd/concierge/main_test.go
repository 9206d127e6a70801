package main

import (
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestChatArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after message are moved first",
			args:     []string{"I'm cold", "-user", "u_001"},
			expected: []string{"-user", "u_001", "I'm cold"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-user", "u_001", "I'm cold"},
			expected: []string{"-user", "u_001", "I'm cold"},
		},
		{
			name:     "message only returns unchanged",
			args:     []string{"I'm cold"},
			expected: []string{"I'm cold"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"warm", "drinks", "-format", "json"},
			expected: []string{"-format", "json", "warm", "drinks"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chatArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("chatArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"hello"}, "hello"},
		{"multiple words", []string{"I'm", "cold"}, "I'm cold"},
		{"single quoted phrase", []string{"I'm cold"}, "I'm cold"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildMessage(tt.args)
			if got != tt.expected {
				t.Errorf("buildMessage(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestChatRequest(t *testing.T) {
	req := chatRequest("u_001", "hi", 37.7749, -122.4194, true)
	if req.Lat == nil || req.Lng == nil || *req.Lat != 37.7749 || *req.Lng != -122.4194 {
		t.Errorf("location not set: %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	noLoc := chatRequest("u_001", "hi", 0, 0, false)
	if noLoc.Location() != nil {
		t.Errorf("location should be nil without lat/lng flags")
	}
}

func TestDecodeChatResponse(t *testing.T) {
	res, err := decodeChatResponse(http.StatusOK, strings.NewReader(`{"run_id":"r1","response":"Call me at 555-123-4567"}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID != "r1" || res.State != "COMPLETED" || res.Response != "Call me at 555-123-4567" {
		t.Errorf("ok result = %+v", res)
	}

	res, err = decodeChatResponse(http.StatusServiceUnavailable,
		strings.NewReader(`{"error":"try again","run_id":"r2","stage":"generate","retryable":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.State != "FAILED" || res.Stage != "generate" || !res.Retryable || res.Response != "" {
		t.Errorf("failed result = %+v", res)
	}

	if _, err := decodeChatResponse(http.StatusBadGateway, strings.NewReader("upstream down")); err == nil {
		t.Error("expected error for non-JSON failure body")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: ":memory:"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
generation:
  provider: echo
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

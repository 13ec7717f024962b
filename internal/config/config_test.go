package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Generator.Timeout != 5*time.Second {
		t.Errorf("Generator.Timeout = %s, want 5s", cfg.Generator.Timeout)
	}
	if cfg.Guard.Concurrency != 1 {
		t.Errorf("Guard.Concurrency = %d, want 1", cfg.Guard.Concurrency)
	}
	if cfg.Notify.GitHub.Enabled() {
		t.Error("GitHub notification should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
log_level: debug
store_path: /var/lib/affordkit/state.db
generator:
  candidates:
    - ./gen/generator.go
  timeout: 2s
sandbox:
  allowed_dirs: [./gen]
  max_script_size: 64KB
guard:
  concurrency: 4
notify:
  github:
    repo: acme/site
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.StorePath != "/var/lib/affordkit/state.db" {
		t.Errorf("StorePath = %q", cfg.StorePath)
	}
	if len(cfg.Generator.Candidates) != 1 || cfg.Generator.Candidates[0] != "./gen/generator.go" {
		t.Errorf("Generator.Candidates = %v", cfg.Generator.Candidates)
	}
	if cfg.Generator.Timeout != 2*time.Second {
		t.Errorf("Generator.Timeout = %s, want 2s", cfg.Generator.Timeout)
	}
	if cfg.Guard.Concurrency != 4 {
		t.Errorf("Guard.Concurrency = %d, want 4", cfg.Guard.Concurrency)
	}
	sb := cfg.Sandbox.Sandbox()
	if sb.MaxScriptSize != "64KB" || len(sb.AllowedDirs) != 1 {
		t.Errorf("Sandbox = %+v", sb)
	}
	// untouched sections keep their defaults
	if cfg.Guard.WatchDebounce != 300*time.Millisecond {
		t.Errorf("Guard.WatchDebounce = %s, want default", cfg.Guard.WatchDebounce)
	}
	if cfg.Notify.GitHub.Enabled() {
		t.Error("notification needs a token")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfigInterpolatesAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("TEST_GH_TOKEN", "ghp_test123")
	t.Setenv("AFFORDKIT_LOG_LEVEL", "warn")
	t.Setenv("AFFORDKIT_GENERATOR_CANDIDATES", "a.go,b.go")
	t.Setenv("AFFORDKIT_GUARD_CONCURRENCY", "3")

	yaml := `
log_level: debug
notify:
  github:
    token: "${TEST_GH_TOKEN}"
    repo: acme/site
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Notify.GitHub.Token != "ghp_test123" {
		t.Errorf("GitHub.Token = %q, want %q", cfg.Notify.GitHub.Token, "ghp_test123")
	}
	if !cfg.Notify.GitHub.Enabled() {
		t.Error("expected notification to be enabled")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, env should win over file", cfg.LogLevel)
	}
	if got := strings.Join(cfg.Generator.Candidates, ","); got != "a.go,b.go" {
		t.Errorf("Generator.Candidates = %q", got)
	}
	if cfg.Guard.Concurrency != 3 {
		t.Errorf("Guard.Concurrency = %d, want 3", cfg.Guard.Concurrency)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "log_level: [", "parse config"},
		{"bad level", "log_level: loud", "log_level"},
		{"negative concurrency", "guard:\n  concurrency: -1", "concurrency"},
		{"bad repo", "notify:\n  github:\n    repo: justaname", "owner/name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestOwnerRepo(t *testing.T) {
	tests := []struct {
		repo        string
		owner, name string
		wantErr     bool
	}{
		{"acme/site", "acme", "site", false},
		{"acme", "", "", true},
		{"/site", "", "", true},
		{"acme/site/extra", "", "", true},
	}
	for _, tt := range tests {
		owner, name, err := GitHubConfig{Repo: tt.repo}.OwnerRepo()
		if (err != nil) != tt.wantErr {
			t.Errorf("OwnerRepo(%q) error = %v, wantErr %v", tt.repo, err, tt.wantErr)
			continue
		}
		if owner != tt.owner || name != tt.name {
			t.Errorf("OwnerRepo(%q) = %q, %q", tt.repo, owner, name)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := DefaultPath(t.TempDir())

	cfg := DefaultConfig()
	cfg.Notify.GitHub.Token = "secret"
	cfg.Notify.GitHub.Repo = "acme/site"
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("token must not be written to disk")
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Generator.Timeout != cfg.Generator.Timeout || got.Notify.GitHub.Repo != "acme/site" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestInterpolateEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("NUM_123", "456")

	tests := []struct {
		input string
		want  string
	}{
		{"${FOO}", "bar"},
		{"prefix-${FOO}-suffix", "prefix-bar-suffix"},
		{"${UNSET_VAR}", "${UNSET_VAR}"}, // unresolved stays
		{"${FOO} and ${NUM_123}", "bar and 456"},
		{"no vars here", "no vars here"},
	}

	for _, tt := range tests {
		got := interpolateEnvVars(tt.input)
		if got != tt.want {
			t.Errorf("interpolateEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

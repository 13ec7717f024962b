// Package config loads affordkit settings from .affordkit/config.yaml and
// AFFORDKIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/cgast/affordkit/internal/sandbox"
)

// Default locations, relative to the project root.
const (
	DirName    = ".affordkit"
	FileName   = "config.yaml"
	DefaultLog = "info"
)

// Config represents the runtime configuration.
type Config struct {
	LogLevel    string          `yaml:"log_level" env:"AFFORDKIT_LOG_LEVEL"`
	StorePath   string          `yaml:"store_path" env:"AFFORDKIT_STORE_PATH"`
	CatalogPath string          `yaml:"catalog_path" env:"AFFORDKIT_CATALOG"`
	MatrixPath  string          `yaml:"matrix_path" env:"AFFORDKIT_MATRIX"`
	Generator   GeneratorConfig `yaml:"generator"`
	Sandbox     SandboxConfig   `yaml:"sandbox"`
	Guard       GuardConfig     `yaml:"guard"`
	Notify      NotifyConfig    `yaml:"notify"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// GeneratorConfig lists where generator scripts are looked up.
type GeneratorConfig struct {
	Candidates []string      `yaml:"candidates" env:"AFFORDKIT_GENERATOR_CANDIDATES" envSeparator:","`
	Timeout    time.Duration `yaml:"timeout" env:"AFFORDKIT_GENERATOR_TIMEOUT"`
}

// SandboxConfig restricts which scripts may be interpreted.
type SandboxConfig struct {
	AllowedDirs   []string `yaml:"allowed_dirs" env:"AFFORDKIT_SANDBOX_ALLOWED" envSeparator:","`
	DeniedDirs    []string `yaml:"denied_dirs" env:"AFFORDKIT_SANDBOX_DENIED" envSeparator:","`
	MaxScriptSize string   `yaml:"max_script_size" env:"AFFORDKIT_SANDBOX_MAX_SCRIPT_SIZE"`
}

// GuardConfig tunes guard runs.
type GuardConfig struct {
	Concurrency   int           `yaml:"concurrency" env:"AFFORDKIT_GUARD_CONCURRENCY"`
	WatchDebounce time.Duration `yaml:"watch_debounce" env:"AFFORDKIT_WATCH_DEBOUNCE"`
}

// NotifyConfig defines where failed runs are reported.
type NotifyConfig struct {
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig holds the GitHub issue target. Notification is off while
// Token or Repo is empty.
type GitHubConfig struct {
	Token   string   `yaml:"token" env:"AFFORDKIT_GITHUB_TOKEN"`
	Repo    string   `yaml:"repo" env:"AFFORDKIT_GITHUB_REPO"` // owner/name
	Labels  []string `yaml:"labels"`
	BaseURL string   `yaml:"base_url" env:"AFFORDKIT_GITHUB_BASE_URL"`
}

// Enabled reports whether issues should be filed.
func (g GitHubConfig) Enabled() bool {
	return g.Token != "" && g.Repo != ""
}

// OwnerRepo splits Repo into its two parts.
func (g GitHubConfig) OwnerRepo() (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(g.Repo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("github repo %q is not owner/name", g.Repo)
	}
	return owner, repo, nil
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"AFFORDKIT_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"AFFORDKIT_SERVICE_NAME"`
}

// Sandbox converts the section into sandbox settings.
func (s SandboxConfig) Sandbox() sandbox.Config {
	return sandbox.Config{
		AllowedDirs:   s.AllowedDirs,
		DeniedDirs:    s.DeniedDirs,
		MaxScriptSize: s.MaxScriptSize,
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:    DefaultLog,
		StorePath:   filepath.Join(DirName, "state.db"),
		CatalogPath: filepath.Join(DirName, "widgets.yaml"),
		Generator: GeneratorConfig{
			Candidates: []string{
				filepath.Join(DirName, "generator"),
				filepath.Join("generator", "generator.go"),
			},
			Timeout: 5 * time.Second,
		},
		Sandbox: SandboxConfig{
			MaxScriptSize: "1MB",
		},
		Guard: GuardConfig{
			Concurrency:   1,
			WatchDebounce: 300 * time.Millisecond,
		},
		Notify: NotifyConfig{
			GitHub: GitHubConfig{Labels: []string{"baseline-guard"}},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "affordkit",
		},
	}
}

// DefaultPath returns the config file location under root.
func DefaultPath(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// LoadConfig reads and parses a config YAML file, then applies environment
// overrides. A missing file yields the defaults plus overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		interpolated := interpolateEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks field ranges.
func (c Config) Validate() error {
	var errs []error
	if !logLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel))
	}
	if c.Generator.Timeout < 0 {
		errs = append(errs, fmt.Errorf("generator.timeout %s is negative", c.Generator.Timeout))
	}
	if c.Guard.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("guard.concurrency %d is negative", c.Guard.Concurrency))
	}
	if c.Notify.GitHub.Repo != "" {
		if _, _, err := c.Notify.GitHub.OwnerRepo(); err != nil {
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Write stores cfg as YAML at path, creating parent directories. The token
// is never written; it belongs in the environment.
func Write(path string, cfg Config) error {
	cfg.Notify.GitHub.Token = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}

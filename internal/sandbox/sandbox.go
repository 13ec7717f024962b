// Package sandbox limits which generator scripts may be interpreted.
package sandbox

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Sandbox restricts script loading to allowed directories and caps the
// script size. Denied directories take precedence over allowed ones.
type Sandbox struct {
	allowedDirs   []string
	deniedDirs    []string
	maxScriptSize int64 // bytes, 0 means unlimited
}

// Config holds the sandbox configuration.
type Config struct {
	AllowedDirs   []string
	DeniedDirs    []string
	MaxScriptSize string // e.g. "256KB", "1MB"
}

// New creates a Sandbox. Directories are resolved to absolute, symlink-free
// paths where they exist.
func New(cfg Config) (*Sandbox, error) {
	s := &Sandbox{}

	for _, p := range cfg.AllowedDirs {
		abs, err := canonical(p)
		if err != nil {
			return nil, fmt.Errorf("sandbox: resolve allowed dir %q: %w", p, err)
		}
		s.allowedDirs = append(s.allowedDirs, abs)
	}
	for _, p := range cfg.DeniedDirs {
		abs, err := canonical(p)
		if err != nil {
			return nil, fmt.Errorf("sandbox: resolve denied dir %q: %w", p, err)
		}
		s.deniedDirs = append(s.deniedDirs, abs)
	}

	if cfg.MaxScriptSize != "" {
		size, err := parseSize(cfg.MaxScriptSize)
		if err != nil {
			return nil, fmt.Errorf("sandbox: parse max_script_size %q: %w", cfg.MaxScriptSize, err)
		}
		s.maxScriptSize = size
	}

	return s, nil
}

// CheckPath returns an error unless path lies under an allowed directory
// and under no denied directory. With no allowed directories configured,
// every non-denied path is allowed.
func (s *Sandbox) CheckPath(path string) error {
	abs, err := canonical(path)
	if err != nil {
		return fmt.Errorf("sandbox: resolve path %q: %w", path, err)
	}

	for _, denied := range s.deniedDirs {
		if within(abs, denied) {
			return fmt.Errorf("sandbox: script %q is under denied dir %q", abs, denied)
		}
	}
	if len(s.allowedDirs) == 0 {
		return nil
	}
	for _, allowed := range s.allowedDirs {
		if within(abs, allowed) {
			return nil
		}
	}
	return fmt.Errorf("sandbox: script %q is not under any allowed dir %v", abs, s.allowedDirs)
}

// CheckFileSize returns an error when size exceeds the script size cap.
func (s *Sandbox) CheckFileSize(size int64) error {
	if s.maxScriptSize <= 0 || size <= s.maxScriptSize {
		return nil
	}
	return fmt.Errorf("sandbox: script is %d bytes, limit is %s", size, formatSize(s.maxScriptSize))
}

// MaxScriptSize returns the cap in bytes, 0 when unlimited.
func (s *Sandbox) MaxScriptSize() int64 {
	return s.maxScriptSize
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// canonical makes p absolute and resolves symlinks in p, or in its parent
// directory when p itself does not exist yet.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}
	return abs, nil
}

// parseSize parses "512", "64KB" or "1.5MB" (case-insensitive) into bytes.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	units := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			n, err := strconv.ParseFloat(num, 64)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid number %q", num)
			}
			return int64(n * float64(u.multiplier)), nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n, nil
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1fGB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

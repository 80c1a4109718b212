// Package agents holds the agent registry's adapter implementations: the
// per-agent strategy for discovering whether it's installed, and for
// turning its descriptor into a spawnable command (spec.md §4.7).
package agents

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// DetectOption is a single installation-discovery strategy. It reports
// whether the agent was found and, if so, the path that matched.
type DetectOption func(ctx context.Context) (bool, string, error)

// WithFileExists checks whether any of paths exists on disk, expanding a
// leading ~ to the user's home directory.
func WithFileExists(paths ...string) DetectOption {
	return func(ctx context.Context) (bool, string, error) {
		for _, p := range paths {
			expanded := expandHomePath(p)
			if expanded == "" {
				continue
			}
			if _, err := os.Stat(expanded); err == nil {
				return true, expanded, nil
			}
		}
		return false, "", nil
	}
}

// WithCommand checks whether name resolves on PATH.
func WithCommand(name string) DetectOption {
	return func(ctx context.Context) (bool, string, error) {
		path, err := exec.LookPath(name)
		if err != nil {
			return false, "", nil
		}
		return true, path, nil
	}
}

// WithCommandOutput runs name with args and checks whether its stdout
// matches pattern, used for version-probe style detection.
func WithCommandOutput(pattern, name string, args ...string) DetectOption {
	return func(ctx context.Context) (bool, string, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		out, err := cmd.Output()
		if err != nil {
			return false, "", nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, "", err
		}
		if re.Match(out) {
			return true, name, nil
		}
		return false, "", nil
	}
}

// WithEnvVar checks whether an environment variable is set and non-empty.
func WithEnvVar(name string) DetectOption {
	return func(ctx context.Context) (bool, string, error) {
		if os.Getenv(name) != "" {
			return true, name, nil
		}
		return false, "", nil
	}
}

// DiscoveryResult is the outcome of running a chain of DetectOptions.
type DiscoveryResult struct {
	Available   bool
	MatchedPath string
}

// Detect runs opts in order and returns the first match.
func Detect(ctx context.Context, opts ...DetectOption) (*DiscoveryResult, error) {
	for _, opt := range opts {
		found, matched, err := opt(ctx)
		if err != nil {
			return &DiscoveryResult{Available: false}, err
		}
		if found {
			return &DiscoveryResult{Available: true, MatchedPath: matched}, nil
		}
	}
	return &DiscoveryResult{Available: false}, nil
}

func expandHomePath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(filepath.FromSlash(path))
}

// OSPaths holds per-OS candidate path lists for WithFileExists-style
// detection.
type OSPaths struct {
	Linux   []string
	MacOS   []string
	Windows []string
}

// Resolve returns the raw candidate paths for the running OS.
func (p OSPaths) Resolve() []string {
	switch runtime.GOOS {
	case "darwin":
		return p.MacOS
	case "windows":
		return p.Windows
	default:
		return p.Linux
	}
}

// Expanded returns Resolve()'s paths with ~ expanded.
func (p OSPaths) Expanded() []string {
	raw := p.Resolve()
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if expanded := expandHomePath(p); expanded != "" {
			out = append(out, expanded)
		}
	}
	return out
}

package sandbox

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/creack/pty"

	"github.com/grayridge/acphost/internal/common/apperr"
)

// TerminalPolicy governs which commands the Delegate's execute_command
// handler will admit (spec.md §4.5.3).
type TerminalPolicy struct {
	Enabled bool

	// RequireConfirmation is advisory: the host decides whether to run
	// an interactive confirmation flow before calling Execute.
	RequireConfirmation bool

	// Whitelist holds allowed executable basenames or glob patterns. An
	// empty whitelist allows every basename.
	Whitelist []string

	// BlockedPatterns holds patterns checked against the full argv joined
	// by spaces, both as doublestar globs and as plain substrings; any
	// match rejects the command.
	BlockedPatterns []string
}

// TerminalExecuteResult is the outcome of a command admitted by the
// policy and run to completion.
type TerminalExecuteResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Admit reports whether argv is allowed to run under p, and if not, why.
func (p TerminalPolicy) Admit(argv []string) error {
	if !p.Enabled {
		return apperr.New(apperr.AccessDenied, "terminal execution is disabled")
	}
	if len(argv) == 0 {
		return apperr.New(apperr.InvalidPath, "empty command")
	}

	basename := filepath.Base(argv[0])
	if len(p.Whitelist) > 0 && !matchesAny(basename, p.Whitelist) {
		return apperr.New(apperr.AccessDenied, "command "+basename+" is not in the terminal whitelist")
	}

	joined := strings.Join(argv, " ")
	for _, pattern := range p.BlockedPatterns {
		matched, err := doublestar.Match(pattern, joined)
		if err == nil && matched {
			return apperr.New(apperr.AccessDenied, "command matches a blocked pattern: "+pattern)
		}
		if strings.Contains(joined, pattern) {
			return apperr.New(apperr.AccessDenied, "command matches a blocked pattern: "+pattern)
		}
	}
	return nil
}

func matchesAny(basename string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == basename {
			return true
		}
		if matched, err := doublestar.Match(pattern, basename); err == nil && matched {
			return true
		}
	}
	return false
}

// Terminal runs admitted commands attached to a pty so interactive CLI
// tools behave the same as they would in a real terminal.
type Terminal struct {
	policy TerminalPolicy
}

// NewTerminal constructs a Terminal enforcing policy.
func NewTerminal(policy TerminalPolicy) *Terminal {
	return &Terminal{policy: policy}
}

// Execute admits argv against the policy, then runs it in dir attached
// to a pty, collecting exit code and combined pty output. cwd must
// already have passed the caller's permission-ledger check.
func (t *Terminal) Execute(ctx context.Context, argv []string, dir string, timeout time.Duration) (*TerminalExecuteResult, error) {
	if err := t.policy.Admit(argv); err != nil {
		return nil, err
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = dir

	f, err := pty.Start(cmd)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConnectionFailed, "failed to start command under pty", err)
	}
	defer f.Close()

	var out bytes.Buffer
	_, _ = io.Copy(&out, f)

	err = cmd.Wait()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return &TerminalExecuteResult{
		ExitCode: exitCode,
		Stdout:   out.String(),
		Stderr:   "",
	}, nil
}

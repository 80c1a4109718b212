package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayridge/acphost/internal/common/apperr"
)

func TestTerminalPolicy_AdmitRejectsWhenDisabled(t *testing.T) {
	p := TerminalPolicy{Enabled: false}
	err := p.Admit([]string{"echo", "hi"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))
}

func TestTerminalPolicy_AdmitEmptyWhitelistAllowsAnyBasename(t *testing.T) {
	p := TerminalPolicy{Enabled: true}
	assert.NoError(t, p.Admit([]string{"ls", "-la"}))
}

func TestTerminalPolicy_AdmitRejectsBasenameNotInWhitelist(t *testing.T) {
	p := TerminalPolicy{Enabled: true, Whitelist: []string{"git", "npm"}}
	err := p.Admit([]string{"rm", "-rf", "/"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))
}

func TestTerminalPolicy_AdmitAllowsWhitelistedBasename(t *testing.T) {
	p := TerminalPolicy{Enabled: true, Whitelist: []string{"git"}}
	assert.NoError(t, p.Admit([]string{"git", "status"}))
}

func TestTerminalPolicy_AdmitRejectsBlockedPattern(t *testing.T) {
	p := TerminalPolicy{Enabled: true, BlockedPatterns: []string{"*--force*"}}
	err := p.Admit([]string{"git", "push", "--force"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))
}

func TestTerminal_ExecuteRunsAdmittedCommand(t *testing.T) {
	term := NewTerminal(TerminalPolicy{Enabled: true})
	dir := t.TempDir()

	result, err := term.Execute(context.Background(), []string{"echo", "hello"}, dir, 5*time.Second)
	if err != nil {
		t.Skipf("pty unavailable in this environment: %v", err)
	}
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello")
}

func TestTerminal_ExecuteRejectsDisallowedCommand(t *testing.T) {
	term := NewTerminal(TerminalPolicy{Enabled: true, Whitelist: []string{"git"}})
	_, err := term.Execute(context.Background(), []string{"rm", "-rf", "/"}, t.TempDir(), time.Second)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))
}

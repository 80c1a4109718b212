package agents

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeBridge_CommandFailsWithoutRequiredEnv(t *testing.T) {
	nb := NewNodeBridge("claude", "Claude", "@zed-industries/claude-code-acp@latest", "claude-code-acp", nil, []string{"ANTHROPIC_API_KEY"}, t.TempDir())

	_, _, err := nb.Command(context.Background(), LaunchOptions{})
	require.Error(t, err)
}

func TestNodeBridge_ResolvesScriptFromUserDataDirLayout(t *testing.T) {
	dataDir := t.TempDir()
	pkgDir := filepath.Join(dataDir, "npm", "node_modules", "@zed-industries/claude-code-acp", "dist")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "index.js"), []byte("// bridge entrypoint"), 0o644))

	nodePath := filepath.Join(dataDir, "node")
	require.NoError(t, os.WriteFile(nodePath, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv(nodeOverrideEnv, nodePath)

	nb := NewNodeBridge("claude", "Claude", "@zed-industries/claude-code-acp@latest", "claude-code-acp", nil, []string{"ANTHROPIC_API_KEY"}, dataDir)
	nb.SetEnv("ANTHROPIC_API_KEY", "test-key")

	cmd, env, err := nb.Command(context.Background(), LaunchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{nodePath, filepath.Join(pkgDir, "index.js")}, cmd.Args())
	assert.Contains(t, env, "ANTHROPIC_API_KEY=test-key")
}

func TestNodeBridge_ScriptOverrideBypassesDiscovery(t *testing.T) {
	dataDir := t.TempDir()
	nodePath := filepath.Join(dataDir, "node")
	require.NoError(t, os.WriteFile(nodePath, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv(nodeOverrideEnv, nodePath)
	t.Setenv(scriptOverrideEnv, "/opt/bridge/index.js")

	nb := NewNodeBridge("claude", "Claude", "@zed-industries/claude-code-acp@latest", "claude-code-acp", nil, nil, dataDir)

	cmd, _, err := nb.Command(context.Background(), LaunchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{nodePath, "/opt/bridge/index.js"}, cmd.Args())
}

func TestNodeBridge_MissingScriptAndNoNpmFailsCommand(t *testing.T) {
	dataDir := t.TempDir()
	nodePath := filepath.Join(dataDir, "node")
	require.NoError(t, os.WriteFile(nodePath, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv(nodeOverrideEnv, nodePath)
	t.Setenv("PATH", "")

	nb := NewNodeBridge("claude", "Claude", "@zed-industries/claude-code-acp@latest", "claude-code-acp", nil, nil, dataDir)

	_, _, err := nb.Command(context.Background(), LaunchOptions{})
	assert.Error(t, err)
}

func TestPackageDirName_StripsVersionSelectorKeepingScope(t *testing.T) {
	assert.Equal(t, "@zed-industries/claude-code-acp", packageDirName("@zed-industries/claude-code-acp@latest"))
	assert.Equal(t, "some-cli", packageDirName("some-cli@1.2.3"))
	assert.Equal(t, "bare-pkg", packageDirName("bare-pkg"))
}

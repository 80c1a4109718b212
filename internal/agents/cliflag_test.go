package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIFlag_CommandFailsWhenBinaryMissing(t *testing.T) {
	c := NewCLIFlag("ghost", "Ghost Agent", "definitely-not-a-real-binary-xyz", []string{"--acp"}, nil)
	_, _, err := c.Command(context.Background(), LaunchOptions{})
	require.Error(t, err)
}

func TestCLIFlag_CommandUsesShellAsBinaryForTest(t *testing.T) {
	c := NewCLIFlag("sh-agent", "Shell", "sh", []string{"--experimental-acp"}, nil)

	result, err := c.Available(context.Background())
	require.NoError(t, err)
	require.True(t, result.Available)

	cmd, _, err := c.Command(context.Background(), LaunchOptions{Model: "fast"})
	require.NoError(t, err)
	args := cmd.Args()
	assert.Equal(t, "--experimental-acp", args[1])
	assert.Contains(t, args, "--model")
}

func TestCmdBuilder_ModelSubstitution(t *testing.T) {
	cmd := Cmd("agent").Model(NewParam("--model", "{model}"), "sonnet").Build()
	assert.Equal(t, []string{"agent", "--model", "sonnet"}, cmd.Args())
}

func TestCmdBuilder_ResumeSkippedWhenNative(t *testing.T) {
	cmd := Cmd("agent").Resume(NewParam("--resume"), "abc123", true).Build()
	assert.Equal(t, []string{"agent"}, cmd.Args())
}

func TestCmdBuilder_ResumeAppendsSessionID(t *testing.T) {
	cmd := Cmd("agent").Resume(NewParam("--resume"), "abc123", false).Build()
	assert.Equal(t, []string{"agent", "--resume", "abc123"}, cmd.Args())
}

package agents

import (
	"context"
	"fmt"
)

// CLIFlag is the adapter shape for agents installed as a standalone CLI
// binary on PATH, launched with a fixed ACP-mode flag set (Gemini CLI's
// --experimental-acp, Goose's "goose acp"), using WithCommand-based PATH
// discovery alongside Cmd/CmdBuilder for flag assembly.
type CLIFlag struct {
	id       string
	name     string
	binary   string
	acpFlags []string
	icon     []byte
	env      map[string]string
}

// NewCLIFlag constructs a CLI-flag adapter for a PATH-resolved binary
// that enters ACP mode via acpFlags.
func NewCLIFlag(id, name, binary string, acpFlags []string, icon []byte) *CLIFlag {
	return &CLIFlag{id: id, name: name, binary: binary, acpFlags: acpFlags, icon: icon, env: map[string]string{}}
}

func (c *CLIFlag) Descriptor() Descriptor {
	return Descriptor{ID: c.id, Name: c.name, Icon: c.icon, Builtin: true}
}

func (c *CLIFlag) Available(ctx context.Context) (*DiscoveryResult, error) {
	return Detect(ctx, WithCommand(c.binary))
}

func (c *CLIFlag) Command(ctx context.Context, opts LaunchOptions) (Command, []string, error) {
	result, err := c.Available(ctx)
	if err != nil {
		return Command{}, nil, err
	}
	if !result.Available {
		return Command{}, nil, fmt.Errorf("agent binary %q not found on PATH", c.binary)
	}

	b := Cmd(c.binary).Flag(c.acpFlags...)
	if opts.Model != "" {
		b = b.Model(NewParam("--model", "{model}"), opts.Model)
	}
	return b.Build(), envSlice(c.env), nil
}

// SetEnv overlays an environment variable onto the subprocess environment.
func (c *CLIFlag) SetEnv(key, value string) { c.env[key] = value }

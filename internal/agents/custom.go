package agents

import (
	"context"
	"fmt"
)

// CustomSpec is the user-authored definition of a custom adapter, loaded
// from the registry's YAML config file (spec.md §4.7: "custom user-defined
// adapter").
type CustomSpec struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Icon    string            `yaml:"icon,omitempty"`
}

// Custom is the adapter for a user-defined agent: an arbitrary command
// and argv the user asserts speaks ACP over stdio.
type Custom struct {
	spec CustomSpec
}

// NewCustom constructs a Custom adapter from a loaded CustomSpec.
func NewCustom(spec CustomSpec) *Custom { return &Custom{spec: spec} }

func (c *Custom) Descriptor() Descriptor {
	return Descriptor{ID: c.spec.ID, Name: c.spec.Name, Builtin: false}
}

func (c *Custom) Available(ctx context.Context) (*DiscoveryResult, error) {
	if c.spec.Command == "" {
		return &DiscoveryResult{Available: false}, fmt.Errorf("custom agent %s has no command configured", c.spec.ID)
	}
	return Detect(ctx, WithCommand(c.spec.Command))
}

func (c *Custom) Command(ctx context.Context, opts LaunchOptions) (Command, []string, error) {
	result, err := c.Available(ctx)
	if err != nil {
		return Command{}, nil, err
	}
	if !result.Available {
		return Command{}, nil, fmt.Errorf("custom agent command %q not found on PATH", c.spec.Command)
	}
	return NewCommand(append([]string{c.spec.Command}, c.spec.Args...)...), envSlice(c.spec.Env), nil
}

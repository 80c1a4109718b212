package agents

import "context"

// Command is a domain value type representing a CLI command with
// arguments. Serialize to []string only at the system boundary
// (internal/transport.Spawn).
type Command struct {
	args []string
}

// NewCommand creates a Command from the given arguments.
func NewCommand(args ...string) Command { return Command{args: append([]string{}, args...)} }

// Args returns the raw string slice for serialization at a process-exec
// boundary.
func (c Command) Args() []string { return c.args }

// IsEmpty reports whether the command has no arguments.
func (c Command) IsEmpty() bool { return len(c.args) == 0 }

// With returns a CmdBuilder seeded with this command's arguments.
func (c Command) With() *CmdBuilder { return &CmdBuilder{args: append([]string{}, c.args...)} }

// Param is a command fragment: one or more pre-split CLI arguments,
// possibly templated (e.g. NewParam("--model", "{model}")).
type Param struct {
	args []string
}

// NewParam creates a Param from the given arguments.
func NewParam(args ...string) Param { return Param{args: append([]string{}, args...)} }

// Args returns the raw string slice.
func (p Param) Args() []string { return p.args }

// IsEmpty reports whether the param has no arguments.
func (p Param) IsEmpty() bool { return len(p.args) == 0 }

// CmdBuilder constructs a Command fluently.
type CmdBuilder struct {
	args []string
}

// Cmd starts building a command from a base command and arguments.
func Cmd(base ...string) *CmdBuilder { return &CmdBuilder{args: append([]string{}, base...)} }

// Flag appends arbitrary flag parts to the command.
func (b *CmdBuilder) Flag(parts ...string) *CmdBuilder {
	b.args = append(b.args, parts...)
	return b
}

// Model appends flag with {model} substituted, skipped if model is empty.
func (b *CmdBuilder) Model(flag Param, model string) *CmdBuilder {
	if flag.IsEmpty() || model == "" {
		return b
	}
	for _, arg := range flag.args {
		b.args = append(b.args, substitute(arg, "{model}", model))
	}
	return b
}

// Resume appends flag + sessionID, skipped when sessionID or flag is
// empty, or the agent resumes sessions natively without a CLI flag.
func (b *CmdBuilder) Resume(flag Param, sessionID string, nativeResume bool) *CmdBuilder {
	if sessionID == "" || nativeResume || flag.IsEmpty() {
		return b
	}
	b.args = append(b.args, flag.args...)
	b.args = append(b.args, sessionID)
	return b
}

// Build returns the final Command value.
func (b *CmdBuilder) Build() Command { return Command{args: b.args} }

func substitute(arg, placeholder, value string) string {
	out := make([]byte, 0, len(arg))
	for i := 0; i < len(arg); {
		if i+len(placeholder) <= len(arg) && arg[i:i+len(placeholder)] == placeholder {
			out = append(out, value...)
			i += len(placeholder)
			continue
		}
		out = append(out, arg[i])
		i++
	}
	return string(out)
}

// Descriptor identifies one agent the registry knows how to run. Adapters
// implement it for their own install/launch strategy (spec.md §4.7).
type Descriptor struct {
	ID   string
	Name string
	Icon []byte

	// Builtin gates whether the registry allows this descriptor to be
	// removed or overwritten: built-in adapters are immutable entries,
	// only custom adapters (Builtin == false) can be edited or deleted.
	Builtin bool
}

// Adapter is the behavior every agent kind supplies: whether it's
// installed, and how to launch it as a connectable subprocess.
type Adapter interface {
	Descriptor() Descriptor
	Available(ctx context.Context) (*DiscoveryResult, error)
	Command(ctx context.Context, opts LaunchOptions) (Command, []string, error)
}

// LaunchOptions carries per-session parameters into Command construction:
// the working directory the agent should treat as its project root, and
// an ACP session id to resume if the adapter supports it.
type LaunchOptions struct {
	WorkingDir string
	ResumeSessionID string
	Model      string
}

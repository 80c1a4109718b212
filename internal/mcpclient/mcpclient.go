// Package mcpclient probes an MCP server declaration before it is
// forwarded to an agent in session/new, connecting to it the same way a
// real MCP-aware tool host would, so a misconfigured command/args pair
// fails fast with a clear error instead of silently breaking the
// agent's own MCP handshake later.
package mcpclient

import (
	"context"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/grayridge/acphost/internal/common/apperr"
)

// ServerSpec is the subset of an MCP stdio-transport launch recipe
// needed to connect: a name for logging, a command, its arguments, and
// environment overrides.
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// Probe connects to the MCP server described by spec, lists its tools,
// and disconnects. It returns the discovered tool names so the caller
// can log what capability surface the declared server actually offers.
func Probe(ctx context.Context, spec ServerSpec) ([]string, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	if len(spec.Env) > 0 {
		cmd.Env = envSlice(spec.Env)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "acphost", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, mcp.NewCommandTransport(cmd))
	if err != nil {
		return nil, apperr.Wrap(apperr.AgentSetupFailed, "failed to connect to mcp server "+spec.Name, err)
	}
	defer session.Close()

	var names []string
	params := &mcp.ListToolsParams{}
	for {
		page, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, apperr.Wrap(apperr.AgentSetupFailed, "failed to list tools from mcp server "+spec.Name, err)
		}
		for _, t := range page.Tools {
			names = append(names, t.Name)
		}
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}
	return names, nil
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

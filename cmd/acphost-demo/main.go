// Command acphost-demo wires a Host together end to end against the
// bundled mockagent, printing the folded task state of one prompt turn.
// It exists as a runnable example of the public pkg/acphost API rather
// than as a production tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/grayridge/acphost/internal/agents"
	"github.com/grayridge/acphost/internal/common/config"
	"github.com/grayridge/acphost/internal/sandbox"
	"github.com/grayridge/acphost/pkg/acp/protocol"
	"github.com/grayridge/acphost/pkg/acphost"
)

func main() {
	agentBinary := flag.String("agent-binary", "", "path to an ACP-speaking agent binary (defaults to the bundled mockagent)")
	workdir := flag.String("workdir", ".", "working directory to grant the agent")
	prompt := flag.String("prompt", "Look around the repository and summarize it.", "prompt text to send")
	flag.Parse()

	if err := run(*agentBinary, *workdir, *prompt); err != nil {
		fmt.Fprintln(os.Stderr, "acphost-demo:", err)
		os.Exit(1)
	}
}

func run(agentBinary, workdir, prompt string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	host := acphost.New(cfg)

	binary := agentBinary
	if binary == "" {
		binary = "mockagent" // go install ./cmd/mockagent to put it on PATH
	}
	host.Registry().RegisterBuiltin(agents.NewCLIFlag("demo", "Demo Agent", binary, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := host.Launch(ctx, acphost.LaunchOptions{
		AgentID:       "demo",
		WorkingDir:    workdir,
		SecurityLevel: sandbox.LevelAutoAcceptEdits,
	})
	if err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	defer sess.Close(2 * time.Second)

	fmt.Printf("negotiated capabilities: loadSession=%v\n", sess.Capabilities().LoadSession)

	if err := sess.NewSession(ctx, workdir); err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	fmt.Println("session:", sess.SessionID())

	state, err := sess.Prompt(ctx, protocol.TextBlock(prompt))
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}

	fmt.Println("status:", state.Status, "stop reason:", state.StopReason)
	for _, m := range state.Messages {
		fmt.Println("message:", m.Text)
	}
	for _, tc := range state.ToolCallsInOrder() {
		fmt.Printf("tool call %s: %s (%s)\n", tc.ID, tc.Title, tc.Status)
		for _, a := range tc.Artifacts {
			size := humanize.Bytes(uint64(len(a.Output)))
			fmt.Printf("  artifact %s: %s\n", a.Kind, size)
		}
	}
	return nil
}

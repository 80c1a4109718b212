// Command mockagent is a minimal ACP-speaking agent for the demo and for
// manual smoke-testing of a Host, standing in for a real vendor CLI (the
// package test suites use inline shell-script agents). It understands initialize,
// session/new, session/load, session/prompt, and session/cancel, and
// emits a small scripted sequence of session/update notifications before
// resolving each prompt, acting as a deterministic stand-in child
// process.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/grayridge/acphost/pkg/acp/jsonrpc"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

func main() {
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	out := &lineWriter{w: os.Stdout}

	a := &agent{out: out}

	for in.Scan() {
		line := in.Bytes()
		if len(line) == 0 {
			continue
		}
		a.handle(append([]byte(nil), line...))
	}
}

// agent holds the fake session state mockagent reports back to the host.
type agent struct {
	out *lineWriter

	mu        sync.Mutex
	sessionID int
}

func (a *agent) handle(line []byte) {
	kind, id, method, _, _, params, err := jsonrpc.Peek(line)
	if err != nil || kind != jsonrpc.KindRequest && kind != jsonrpc.KindNotification {
		return
	}

	switch method {
	case jsonrpc.MethodInitialize:
		a.respondRaw(id, map[string]interface{}{
			"protocolVersion": protocol.ProtocolVersion,
			"capabilities": map[string]interface{}{
				"loadSession": true,
				"mcp":         true,
				"fs":          map[string]bool{"readTextFile": true, "writeTextFile": true, "listDirectory": true},
				"terminal":    map[string]bool{"execute": true},
			},
		})

	case jsonrpc.MethodSessionNew:
		a.mu.Lock()
		a.sessionID++
		sid := "mock-session-" + strconv.Itoa(a.sessionID)
		a.mu.Unlock()
		a.respondRaw(id, map[string]string{"sessionId": sid})

	case jsonrpc.MethodSessionLoad:
		a.respondRaw(id, map[string]interface{}{})

	case jsonrpc.MethodSessionPrompt:
		var p struct {
			SessionID string `json:"sessionId"`
		}
		_ = json.Unmarshal(params, &p)
		a.runScriptedTurn(p.SessionID)
		a.respondRaw(id, map[string]string{"stopReason": string(protocol.StopEndTurn)})

	case jsonrpc.MethodSessionCancel:
		// Notification only; nothing to acknowledge.

	default:
		if id != nil {
			a.out.writeJSON(jsonrpc.Response{
				JSONRPC: "2.0", ID: id,
				Error: &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "unsupported method: " + method},
			})
		}
	}
}

// runScriptedTurn emits a plan, a read tool call, and a closing message
// chunk, enough to exercise the accumulator's fold rules end to end.
func (a *agent) runScriptedTurn(sessionID string) {
	a.notify(sessionID, map[string]interface{}{
		"sessionUpdate": "plan",
		"entries":       []map[string]string{{"content": "inspect the repository", "status": "pending"}},
	})
	a.notify(sessionID, map[string]interface{}{
		"sessionUpdate": "tool_call",
		"toolCallId":    "tc-1",
		"title":         "Read README.md",
		"kind":          "read",
		"status":        "in_progress",
	})
	a.notify(sessionID, map[string]interface{}{
		"sessionUpdate": "tool_call_update",
		"toolCallId":    "tc-1",
		"status":        "completed",
	})
	a.notify(sessionID, map[string]interface{}{
		"sessionUpdate": "agent_message_chunk",
		"content":       map[string]string{"type": "text", "text": "Done."},
	})
}

func (a *agent) notify(sessionID string, update map[string]interface{}) {
	a.out.writeJSON(jsonrpc.Notification{
		JSONRPC: "2.0",
		Method:  jsonrpc.NotificationSessionUpdate,
		Params:  mustMarshal(map[string]interface{}{"sessionId": sessionID, "update": update}),
	})
}

func (a *agent) respondRaw(id interface{}, result interface{}) {
	a.out.writeJSON(jsonrpc.Response{JSONRPC: "2.0", ID: id, Result: mustMarshal(result)})
}

func mustMarshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}

// lineWriter serializes concurrent writers onto a single NDJSON stream.
type lineWriter struct {
	mu sync.Mutex
	w  *os.File
}

func (l *lineWriter) writeJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mockagent: marshal error: %v\n", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(data)
	l.w.Write([]byte("\n"))
}

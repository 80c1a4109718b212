// Package callback defines the AgentClient interface the connection
// calls into for agent-initiated fs/* and terminal/* requests, and the
// standard Delegate implementation that enforces sandbox policy before
// performing them (spec.md §4.4).
package callback

import (
	"context"
	"encoding/json"

	"github.com/grayridge/acphost/internal/common/apperr"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// ReadTextFileParams is the agent-supplied request to read a file.
type ReadTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// WriteTextFileParams is the agent-supplied request to write a file.
type WriteTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// ListDirectoryParams is the agent-supplied request to list a directory.
type ListDirectoryParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// DeleteFileParams is the agent-supplied request to delete a file.
type DeleteFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// MoveFileParams is the agent-supplied request to move/rename a file.
type MoveFileParams struct {
	SessionID string `json:"sessionId"`
	OldPath   string `json:"oldPath"`
	NewPath   string `json:"newPath"`
}

// CreateDirectoryParams is the agent-supplied request to create a
// directory.
type CreateDirectoryParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// ExecuteCommandParams is the agent-supplied request to run a command.
type ExecuteCommandParams struct {
	SessionID string   `json:"sessionId"`
	Command   []string `json:"command"`
	Cwd       string   `json:"cwd,omitempty"`
}

// RequestPermissionParams is the agent-supplied request asking the host
// to confirm a pending sandbox-gated operation.
type RequestPermissionParams struct {
	SessionID     string                   `json:"sessionId"`
	ToolCallID    string                   `json:"toolCallId"`
	Title         string                   `json:"title"`
	Options       []map[string]interface{} `json:"options"`
	ActionDetails map[string]interface{}   `json:"actionDetails"`
}

// PermissionDecision is the host's answer to a request_permission call.
type PermissionDecision struct {
	Outcome  string `json:"outcome"` // "selected" or "cancelled"
	OptionID string `json:"optionId,omitempty"`
}

// AgentClient is the typed surface the agent calls back through. Every
// method receives params the agent controls and must be treated as
// adversarial input: a malformed or malicious payload must yield a
// typed error, never a panic (spec.md §4.4).
type AgentClient interface {
	ReadTextFile(ctx context.Context, p ReadTextFileParams) (string, error)
	WriteTextFile(ctx context.Context, p WriteTextFileParams) error
	ListDirectory(ctx context.Context, p ListDirectoryParams) ([]DirEntryResult, error)
	DeleteFile(ctx context.Context, p DeleteFileParams) error
	MoveFile(ctx context.Context, p MoveFileParams) error
	CreateDirectory(ctx context.Context, p CreateDirectoryParams) error
	ExecuteCommand(ctx context.Context, p ExecuteCommandParams) (ExecuteCommandResult, error)
	RequestPermission(ctx context.Context, p RequestPermissionParams) (PermissionDecision, error)
	OnSessionNotification(update protocol.SessionUpdate)
}

// DirEntryResult is the wire-facing shape of a directory listing row.
type DirEntryResult struct {
	Name      string `json:"name"`
	IsDir     bool   `json:"isDir"`
	Size      int64  `json:"size,omitempty"`
	HumanSize string `json:"humanSize,omitempty"`
	ModTime   string `json:"modTime"`
	Mime      string `json:"mime,omitempty"`
}

// ExecuteCommandResult is the wire-facing shape of a terminal execution.
type ExecuteCommandResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Dispatch decodes params for method and invokes the matching AgentClient
// method, returning a JSON-serializable result or a typed error. It is
// the single entry point internal/connection's inbound-request path
// calls, keeping per-method JSON decoding out of the hot dispatch loop.
func Dispatch(ctx context.Context, client AgentClient, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "fs/read_text_file":
		var p ReadTextFileParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		content, err := client.ReadTextFile(ctx, p)
		if err != nil {
			return nil, err
		}
		return map[string]string{"content": content}, nil

	case "fs/write_file", "fs/write_text_file":
		var p WriteTextFileParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		return nil, client.WriteTextFile(ctx, p)

	case "fs/list_directory":
		var p ListDirectoryParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		entries, err := client.ListDirectory(ctx, p)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"entries": entries}, nil

	case "fs/delete_file":
		var p DeleteFileParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		return nil, client.DeleteFile(ctx, p)

	case "fs/move_file":
		var p MoveFileParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		return nil, client.MoveFile(ctx, p)

	case "fs/create_directory":
		var p CreateDirectoryParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		return nil, client.CreateDirectory(ctx, p)

	case "terminal/execute":
		var p ExecuteCommandParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		return client.ExecuteCommand(ctx, p)

	case "session/request_permission":
		var p RequestPermissionParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		return client.RequestPermission(ctx, p)

	default:
		return nil, apperr.New(apperr.CapabilityNotSupported, "unsupported agent-initiated method: "+method)
	}
}

func decode(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 {
		return apperr.New(apperr.InvalidMessage, "missing params")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperr.Wrap(apperr.InvalidMessage, "malformed params", err)
	}
	return nil
}

package callback

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/grayridge/acphost/internal/common/apperr"
	"github.com/grayridge/acphost/internal/sandbox"
	"github.com/grayridge/acphost/internal/settingsstore"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// ConfirmationFunc runs the host's interactive confirmation flow for a
// sandbox-gated operation. The Delegate calls it when an operation
// requires confirmation; when none is wired, such a call is
// short-circuited with AccessDenied (spec.md §4.4).
type ConfirmationFunc func(ctx context.Context, sessionID, path string, op sandbox.Operation) (bool, error)

// Delegate is the standard AgentClient implementation: it composes the
// Sandbox's permission ledger, filesystem operations, and terminal
// policy with an injected SettingsStore, applying the confirmation
// policy spec.md §4.4 describes.
type Delegate struct {
	ledger      *sandbox.Ledger
	fs          *sandbox.FS
	agentID     string
	settings    settingsstore.SettingsStore
	confirm     ConfirmationFunc
	defaultTerm sandbox.TerminalPolicy
	onUpdate    func(protocol.SessionUpdate)
}

// NewDelegate constructs a Delegate for one agent connection. confirm
// may be nil, in which case any operation requiring confirmation is
// always rejected.
func NewDelegate(agentID string, ledger *sandbox.Ledger, settings settingsstore.SettingsStore, confirm ConfirmationFunc) *Delegate {
	return &Delegate{
		ledger:   ledger,
		fs:       sandbox.NewFS(),
		agentID:  agentID,
		settings: settings,
		confirm:  confirm,
	}
}

// SetSessionNotificationHandler wires the function OnSessionNotification
// forwards folded updates to (typically the session accumulator).
func (d *Delegate) SetSessionNotificationHandler(fn func(protocol.SessionUpdate)) {
	d.onUpdate = fn
}

func (d *Delegate) OnSessionNotification(update protocol.SessionUpdate) {
	if d.onUpdate != nil {
		d.onUpdate(update)
	}
}

// gate validates p against the ledger and, if the operation requires
// confirmation at its granted level, runs the confirmation flow.
func (d *Delegate) gate(ctx context.Context, sessionID, p string, op sandbox.Operation) (string, error) {
	normalized, err := sandbox.Normalize(p)
	if err != nil {
		return "", err
	}
	entry, err := d.ledger.ValidateAccess(normalized)
	if err != nil {
		return "", err
	}
	if !sandbox.RequiresConfirmation(entry.Level, op) {
		return normalized, nil
	}
	if d.confirm == nil {
		return "", apperr.New(apperr.AccessDenied, string(op)+" on "+normalized+" requires confirmation")
	}
	approved, err := d.confirm(ctx, sessionID, normalized, op)
	if err != nil {
		return "", err
	}
	if !approved {
		return "", apperr.New(apperr.AccessDenied, string(op)+" on "+normalized+" requires confirmation")
	}
	return normalized, nil
}

func (d *Delegate) ReadTextFile(ctx context.Context, p ReadTextFileParams) (string, error) {
	path, err := d.gate(ctx, p.SessionID, p.Path, sandbox.OpRead)
	if err != nil {
		return "", err
	}
	return d.fs.ReadTextFile(path)
}

func (d *Delegate) ListDirectory(ctx context.Context, p ListDirectoryParams) ([]DirEntryResult, error) {
	path, err := d.gate(ctx, p.SessionID, p.Path, sandbox.OpList)
	if err != nil {
		return nil, err
	}
	entries, err := d.fs.ListDirectory(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntryResult, 0, len(entries))
	for _, e := range entries {
		humanSize := ""
		if !e.IsDir {
			humanSize = humanize.Bytes(uint64(e.Size))
		}
		out = append(out, DirEntryResult{
			Name:      e.Name,
			IsDir:     e.IsDir,
			Size:      e.Size,
			HumanSize: humanSize,
			ModTime:   e.ModTime.Format(time.RFC3339),
			Mime:      e.Mime,
		})
	}
	return out, nil
}

func (d *Delegate) WriteTextFile(ctx context.Context, p WriteTextFileParams) error {
	path, err := d.gate(ctx, p.SessionID, p.Path, sandbox.OpWrite)
	if err != nil {
		return err
	}
	_, err = d.fs.WriteTextFile(path, p.Content)
	return err
}

func (d *Delegate) DeleteFile(ctx context.Context, p DeleteFileParams) error {
	path, err := d.gate(ctx, p.SessionID, p.Path, sandbox.OpDelete)
	if err != nil {
		return err
	}
	return d.fs.DeleteFile(path)
}

func (d *Delegate) MoveFile(ctx context.Context, p MoveFileParams) error {
	oldPath, err := d.gate(ctx, p.SessionID, p.OldPath, sandbox.OpMove)
	if err != nil {
		return err
	}
	newPath, err := d.gate(ctx, p.SessionID, p.NewPath, sandbox.OpMove)
	if err != nil {
		return err
	}
	_, err = d.fs.MoveFile(oldPath, newPath)
	return err
}

func (d *Delegate) CreateDirectory(ctx context.Context, p CreateDirectoryParams) error {
	path, err := d.gate(ctx, p.SessionID, p.Path, sandbox.OpWrite)
	if err != nil {
		return err
	}
	_, err = d.fs.CreateDirectory(path)
	return err
}

// ExecuteCommand validates cwd against the permission ledger, then runs
// the command under the terminal policy loaded from settings for this
// agent (falling back to defaultTerm when nothing has been saved).
func (d *Delegate) ExecuteCommand(ctx context.Context, p ExecuteCommandParams) (ExecuteCommandResult, error) {
	cwd := p.Cwd
	if cwd != "" {
		normalized, err := d.gate(ctx, p.SessionID, cwd, sandbox.OpExecute)
		if err != nil {
			return ExecuteCommandResult{}, err
		}
		cwd = normalized
	}

	policy := d.defaultTerm
	if d.settings != nil {
		if loaded, ok, err := settingsstore.LoadTerminalPolicy(d.settings, d.agentID); err == nil && ok {
			policy = loaded
		}
	}
	if policy.RequireConfirmation {
		if d.confirm == nil {
			return ExecuteCommandResult{}, apperr.New(apperr.AccessDenied, "command execution requires confirmation")
		}
		approved, err := d.confirm(ctx, p.SessionID, cwd, sandbox.OpExecute)
		if err != nil {
			return ExecuteCommandResult{}, err
		}
		if !approved {
			return ExecuteCommandResult{}, apperr.New(apperr.AccessDenied, "command execution requires confirmation")
		}
	}

	term := sandbox.NewTerminal(policy)
	result, err := term.Execute(ctx, p.Command, cwd, 0)
	if err != nil {
		return ExecuteCommandResult{}, err
	}
	return ExecuteCommandResult{ExitCode: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr}, nil
}

// RequestPermission is not policy-gated itself; the Delegate forwards it
// to the host-supplied confirmation flow when present, otherwise
// declines by default.
func (d *Delegate) RequestPermission(ctx context.Context, p RequestPermissionParams) (PermissionDecision, error) {
	if d.confirm == nil {
		return PermissionDecision{Outcome: "cancelled"}, nil
	}
	approved, err := d.confirm(ctx, p.SessionID, "", sandbox.OpWrite)
	if err != nil {
		return PermissionDecision{}, err
	}
	if !approved {
		return PermissionDecision{Outcome: "cancelled"}, nil
	}
	return PermissionDecision{Outcome: "selected"}, nil
}

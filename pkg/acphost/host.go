// Package acphost is the consumer-facing entry point: it wires the
// registry, connection, sandbox, callback, and session packages together
// into the host-side API a caller uses to launch an agent subprocess,
// run prompts against it, and observe the folded task state as it
// streams in (spec.md §6 EXTERNAL INTERFACES).
package acphost

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grayridge/acphost/internal/agents"
	"github.com/grayridge/acphost/internal/callback"
	"github.com/grayridge/acphost/internal/common/apperr"
	"github.com/grayridge/acphost/internal/common/config"
	"github.com/grayridge/acphost/internal/common/logger"
	"github.com/grayridge/acphost/internal/connection"
	"github.com/grayridge/acphost/internal/registry"
	"github.com/grayridge/acphost/internal/sandbox"
	"github.com/grayridge/acphost/internal/settingsstore"
	"github.com/grayridge/acphost/internal/transport"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// Error is the single error type every acphost public operation returns,
// re-exported from internal/common/apperr so callers never import an
// internal package to branch on error kind (spec.md §6/§7).
type Error = apperr.Error

// ErrorKind classifies an Error. See the Kind constants re-exported below.
type ErrorKind = apperr.Kind

// Re-exported error kinds, spec.md §6's taxonomy verbatim.
const (
	ErrConnectionFailed       = apperr.ConnectionFailed
	ErrTimeout                = apperr.Timeout
	ErrInvalidMessage         = apperr.InvalidMessage
	ErrCapabilityNotSupported = apperr.CapabilityNotSupported
	ErrSessionNotFound        = apperr.SessionNotFound
	ErrSessionAlreadyExists   = apperr.SessionAlreadyExists
	ErrAgentNotFound          = apperr.AgentNotFound
	ErrAgentAlreadyRunning    = apperr.AgentAlreadyRunning
	ErrAgentSetupFailed       = apperr.AgentSetupFailed
	ErrAccessDenied           = apperr.AccessDenied
	ErrPathNotGranted         = apperr.PathNotGranted
	ErrFileNotFound           = apperr.FileNotFound
	ErrDirectoryNotFound      = apperr.DirectoryNotFound
	ErrInvalidPath            = apperr.InvalidPath
)

// IsKind reports whether err (or a wrapped cause) carries kind.
func IsKind(err error, kind ErrorKind) bool { return apperr.Is(err, kind) }

// Host owns the agent registry and the ambient configuration/logging used
// to launch sessions. One Host typically lives for the lifetime of the
// consuming process.
type Host struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *registry.Registry
	settings settingsstore.SettingsStore
}

// Option configures a Host at construction time.
type Option func(*Host)

// WithLogger overrides the Host's default logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithSettingsStore installs the collaborator spec.md §6 describes as
// "consumed from a collaborator": a key/value store the sandbox's
// terminal policy is persisted through. Defaults to an in-process Memory
// store when not supplied.
func WithSettingsStore(s settingsstore.SettingsStore) Option {
	return func(h *Host) { h.settings = s }
}

// New constructs a Host from cfg (see internal/common/config.Load), ready
// to have builtin and custom agents registered onto it.
func New(cfg *config.Config, opts ...Option) *Host {
	h := &Host{
		cfg:      cfg,
		log:      logger.Default(),
		settings: settingsstore.NewMemory(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registry = registry.New(h.log)
	return h
}

// Registry exposes the underlying agent registry for builtin/custom agent
// registration and introspection (spec.md §4.7).
func (h *Host) Registry() *registry.Registry { return h.registry }

// LaunchOptions carries the per-launch parameters a caller supplies to
// Launch, layered on top of agents.LaunchOptions with the sandboxing and
// callback posture for the resulting Session.
type LaunchOptions struct {
	AgentID         string
	WorkingDir      string
	ResumeSessionID string
	Model           string

	// SecurityLevel gates which callback operations the Delegate performs
	// without confirmation (spec.md §4.5.1). Defaults to sandbox.LevelStrict.
	SecurityLevel sandbox.SecurityLevel

	// Confirm runs the host's interactive confirmation flow. When nil, any
	// operation that would require confirmation is denied outright.
	Confirm callback.ConfirmationFunc

	// TerminalPolicy, when Enabled, is saved to the settings store at
	// Launch as this agent's command-execution policy, replacing any policy
	// saved for the agent earlier.
	TerminalPolicy sandbox.TerminalPolicy
}

// Launch resolves opts.AgentID in the registry, spawns it as a subprocess,
// performs the ACP initialize handshake, and returns a Session ready for
// NewSession/LoadSession + Prompt.
func (h *Host) Launch(ctx context.Context, opts LaunchOptions) (*Session, error) {
	adapter, err := h.registry.Get(opts.AgentID)
	if err != nil {
		return nil, err
	}

	instanceID := uuid.NewString()
	log := h.log.WithFields(zap.String("agent_id", opts.AgentID), zap.String("instance_id", instanceID))

	cmd, env, err := adapter.Command(ctx, agents.LaunchOptions{
		WorkingDir:      opts.WorkingDir,
		ResumeSessionID: opts.ResumeSessionID,
		Model:           opts.Model,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.AgentSetupFailed, "failed to build launch command for "+opts.AgentID, err)
	}

	args := cmd.Args()
	if len(args) == 0 {
		return nil, apperr.New(apperr.AgentSetupFailed, "adapter produced an empty command for "+opts.AgentID)
	}

	log.Info("launching agent subprocess", zap.Strings("argv", args))
	tr, err := transport.Spawn(context.Background(), args[0], args[1:], env, opts.WorkingDir, log)
	if err != nil {
		return nil, err
	}

	conn := connection.New(tr, log)

	level := opts.SecurityLevel
	if level == "" {
		level = sandbox.LevelStrict
	}
	ledger := sandbox.NewLedger()
	if opts.WorkingDir != "" {
		if err := ledger.Grant(opts.WorkingDir, level, instanceID); err != nil {
			_ = conn.Close(0)
			return nil, err
		}
	}

	delegate := callback.NewDelegate(opts.AgentID, ledger, h.settings, opts.Confirm)
	if opts.TerminalPolicy.Enabled {
		_ = settingsstore.SaveTerminalPolicy(h.settings, opts.AgentID, opts.TerminalPolicy)
	}

	conn.SetAgentRequestHandler(func(ctx context.Context, id interface{}, method string, params json.RawMessage) {
		result, err := callback.Dispatch(ctx, delegate, method, params)
		if err != nil {
			respondErr(conn, id, err)
			return
		}
		_ = conn.Respond(id, result, nil)
	})

	sess := newSession(h, instanceID, opts.AgentID, conn, ledger, delegate, log)

	connectTimeout := time.Duration(h.cfg.Timeouts.ConnectSeconds) * time.Second
	initCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	caps, err := conn.Initialize(initCtx, protocol.ClientInfo{
		Name:    h.cfg.Protocol.ClientName,
		Version: h.cfg.Protocol.ClientBuild,
	})
	if err != nil {
		_ = conn.Close(0)
		return nil, err
	}
	sess.capabilities = caps

	return sess, nil
}

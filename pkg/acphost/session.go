package acphost

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grayridge/acphost/internal/callback"
	"github.com/grayridge/acphost/internal/common/apperr"
	"github.com/grayridge/acphost/internal/common/logger"
	"github.com/grayridge/acphost/internal/connection"
	"github.com/grayridge/acphost/internal/mcpclient"
	"github.com/grayridge/acphost/internal/sandbox"
	"github.com/grayridge/acphost/internal/session"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// Session is one launched agent subprocess's connection, paired with the
// sandbox ledger granting it filesystem/terminal access and the folded
// task state of its most recent prompt (spec.md §2 SYSTEM OVERVIEW).
type Session struct {
	host       *Host
	InstanceID string
	AgentID    string

	conn     *connection.Connection
	ledger   *sandbox.Ledger
	delegate *callback.Delegate
	log      *logger.Logger

	capabilities protocol.AgentCapabilities

	mu         sync.Mutex
	sessionID  string
	workingDir string
	acc        *session.Accumulator
	baseline   *sandbox.Baseline

	unsubscribe func()
}

func newSession(h *Host, instanceID, agentID string, conn *connection.Connection, ledger *sandbox.Ledger, delegate *callback.Delegate, log *logger.Logger) *Session {
	s := &Session{
		host:       h,
		InstanceID: instanceID,
		AgentID:    agentID,
		conn:       conn,
		ledger:     ledger,
		delegate:   delegate,
		log:        log,
	}
	// Forwarded through the Delegate too, so an AgentClient caller that
	// only has the callback layer in hand (e.g. a test double) still sees
	// folded updates the same way a full Session would.
	delegate.SetSessionNotificationHandler(s.onUpdate)

	updates, unsubscribe := conn.SubscribeUpdates()
	s.unsubscribe = unsubscribe
	go func() {
		for u := range updates {
			s.onUpdate(u)
		}
	}()
	return s
}

// Capabilities returns the capability set negotiated during Launch.
func (s *Session) Capabilities() protocol.AgentCapabilities { return s.capabilities }

// SessionID returns the agent-assigned session id, empty until NewSession
// or LoadSession has succeeded.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Grant extends this session's permission ledger with an additional path
// at the given security level, beyond the working directory granted at
// Launch (spec.md §4.5.1).
func (s *Session) Grant(path string, level sandbox.SecurityLevel) error {
	return s.ledger.Grant(path, level, s.InstanceID)
}

// NewSession starts a fresh agent session rooted at cwd via session/new.
// Declared MCP servers are probed first so a misconfigured command fails
// with a clear error here rather than surfacing as an opaque agent-side
// MCP handshake failure later in the turn.
func (s *Session) NewSession(ctx context.Context, cwd string, mcpServers ...connection.MCPServerParams) error {
	for _, m := range mcpServers {
		tools, err := mcpclient.Probe(ctx, mcpclient.ServerSpec{Name: m.Name, Command: m.Command, Args: m.Args, Env: m.Env})
		if err != nil {
			return err
		}
		s.log.Info("mcp server validated", zap.String("mcp_server", m.Name), zap.Strings("tools", tools))
	}

	sessionID, err := s.conn.NewSession(ctx, cwd, mcpServers...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessionID = sessionID
	s.workingDir = cwd
	s.acc = session.NewAccumulator(sessionID)
	s.baseline = s.snapshotBaseline(cwd)
	s.mu.Unlock()
	return nil
}

// LoadSession resumes a previously created agent session via session/load.
func (s *Session) LoadSession(ctx context.Context, sessionID, cwd string) error {
	if err := s.conn.LoadSession(ctx, sessionID, cwd); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessionID = sessionID
	s.workingDir = cwd
	s.acc = session.NewAccumulator(sessionID)
	s.baseline = s.snapshotBaseline(cwd)
	s.mu.Unlock()
	return nil
}

// snapshotBaseline takes the working-directory snapshot the sandbox
// watcher compares against after each turn. A failure to snapshot (e.g. a
// working directory that doesn't exist yet) just disables attribution for
// this session rather than failing session setup.
func (s *Session) snapshotBaseline(cwd string) *sandbox.Baseline {
	baseline, err := sandbox.Snapshot(cwd)
	if err != nil {
		s.log.Warn("sandbox watcher baseline snapshot failed, change attribution disabled", zap.String("working_dir", cwd), zap.Error(err))
		return nil
	}
	return baseline
}

// Prompt sends content to the agent and blocks until it reports a
// stop_reason, returning the fully-folded TaskState for the turn. Each
// call starts a fresh TaskState carrying its own task id, the prompt
// content, and the session's working directory (spec.md §3: "one
// TaskState per session/prompt turn").
func (s *Session) Prompt(ctx context.Context, content ...protocol.ContentBlock) (*session.TaskState, error) {
	s.mu.Lock()
	sessionID := s.sessionID
	workingDir := s.workingDir
	acc := s.acc
	s.mu.Unlock()
	if sessionID == "" || acc == nil {
		return nil, apperr.New(apperr.SessionNotFound, "Prompt called before NewSession/LoadSession")
	}

	taskID := uuid.NewString()
	log := s.log.WithFields(zap.String("task_id", taskID), zap.String("session_id", sessionID))
	log.Info("sending prompt", zap.Int("content_blocks", len(content)))

	s.mu.Lock()
	acc.BeginTask(taskID, s.AgentID, workingDir, content)
	s.mu.Unlock()

	resp, err := s.conn.Prompt(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	acc.FoldPromptResponse(resp)
	s.attributeFilesystemChanges(acc, workingDir)
	state := acc.State()
	s.mu.Unlock()

	log.Info("prompt turn finished", zap.String("status", string(state.Status)), zap.String("stop_reason", string(resp.StopReason)))
	return state, nil
}

// attributeFilesystemChanges diffs the working directory against the
// session's baseline, attributes each change to an active tool call or to
// the user, and records the ones the agent plausibly caused as
// turn-level artifacts. Must be called with s.mu held. (spec.md §4.5.4,
// §3 "watcher-inferred" artifact source.)
func (s *Session) attributeFilesystemChanges(acc *session.Accumulator, workingDir string) {
	if s.baseline == nil {
		return
	}
	changes, err := sandbox.ChangesSinceBaseline(s.baseline)
	if err != nil {
		s.log.Warn("sandbox watcher rescan failed", zap.Error(err))
		return
	}

	active := acc.ActiveToolCalls()
	now := time.Now()
	for _, change := range changes {
		attr := sandbox.Attribute(change, active, now)
		if attr.Kind == sandbox.AttributionUserAction {
			continue
		}
		acc.AddArtifact(session.Artifact{
			Kind:   artifactKindForChange(change.Kind),
			Source: session.SourceWatcherInferred,
			Path:   change.RelPath,
			ToolID: attr.ToolCallID,
		})
	}

	if baseline, err := sandbox.Snapshot(workingDir); err == nil {
		s.baseline = baseline
	}
}

func artifactKindForChange(kind sandbox.ChangeKind) session.ArtifactKind {
	switch kind {
	case sandbox.ChangeCreated:
		return session.ArtifactFileCreated
	case sandbox.ChangeDeleted:
		return session.ArtifactFileDeleted
	default:
		return session.ArtifactFileModified
	}
}

// State returns the TaskState accumulated so far for the active prompt
// turn, safe to call concurrently with in-flight streaming updates.
func (s *Session) State() *session.TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc == nil {
		return nil
	}
	return s.acc.State()
}

// Cancel asks the agent to abort the current turn.
func (s *Session) Cancel() error {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID == "" {
		return apperr.New(apperr.SessionNotFound, "Cancel called before NewSession/LoadSession")
	}
	return s.conn.Cancel(sessionID)
}

// Close terminates the agent subprocess, waiting up to grace before
// killing it.
func (s *Session) Close(grace time.Duration) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.ledger.ClearSessionPermissions(s.InstanceID)
	return s.conn.Close(grace)
}

// onUpdate folds one session/update notification into the active
// accumulator. Updates for a stale or mismatched session id are dropped
// rather than panicking on a nil accumulator.
func (s *Session) onUpdate(u protocol.SessionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc == nil || (u.SessionID != "" && u.SessionID != s.sessionID) {
		return
	}
	s.acc.Fold(u)
}

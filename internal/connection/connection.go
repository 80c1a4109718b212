package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/grayridge/acphost/internal/common/apperr"
	"github.com/grayridge/acphost/internal/common/logger"
	"github.com/grayridge/acphost/internal/transport"
	"github.com/grayridge/acphost/pkg/acp/jsonrpc"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// DefaultRequestTimeout is applied to any Call that doesn't specify its
// own context deadline (spec.md §4.3).
const DefaultRequestTimeout = 30 * time.Second

// AgentRequestHandler services a request the agent sent to the host (e.g.
// fs/read_text_file, session/request_permission). It must eventually call
// Connection.Respond with the same id.
type AgentRequestHandler func(ctx context.Context, id interface{}, method string, params json.RawMessage)

// Connection owns one agent subprocess's JSON-RPC correlation: outbound
// request/response matching, and dispatch of inbound notifications and
// agent-originated requests: a pending-call map keyed by request id and a
// read loop that classifies each inbound line with pkg/acp/jsonrpc.Peek,
// built on the envelope/protocol split in pkg/acp.
type Connection struct {
	tr  *transport.Transport
	log *logger.Logger

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan *jsonrpc.Response

	updates *Broadcaster[protocol.SessionUpdate]

	onAgentRequest AgentRequestHandler

	capabilities protocol.AgentCapabilities
	capsMu       sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
}

// New wraps an already-spawned Transport in request/response correlation
// and starts its inbound dispatch loop.
func New(tr *transport.Transport, log *logger.Logger) *Connection {
	c := &Connection{
		tr:      tr,
		log:     log.WithFields(zap.String("component", "connection")),
		pending: make(map[uint64]chan *jsonrpc.Response),
		updates: NewBroadcaster[protocol.SessionUpdate](),
		done:    make(chan struct{}),
	}
	go c.dispatchLoop()
	return c
}

// SetAgentRequestHandler installs the callback layer's handler for
// requests the agent sends to the host. Must be called before the agent
// is expected to issue any such requests (typically right after New).
func (c *Connection) SetAgentRequestHandler(h AgentRequestHandler) {
	c.onAgentRequest = h
}

// SubscribeUpdates returns a channel of session/update notifications and
// an unsubscribe function.
func (c *Connection) SubscribeUpdates() (<-chan protocol.SessionUpdate, func()) {
	return c.updates.Subscribe()
}

// Capabilities returns the capability set negotiated during Initialize.
func (c *Connection) Capabilities() protocol.AgentCapabilities {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.capabilities
}

// Call sends a request and blocks for its response, applying
// DefaultRequestTimeout if ctx has no deadline.
func (c *Connection) Call(ctx context.Context, method string, params interface{}) (*jsonrpc.Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	req, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidMessage, "failed to marshal request params", err)
	}

	respCh := make(chan *jsonrpc.Response, 1)
	c.mu.Lock()
	c.pending[id] = respCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidMessage, "failed to marshal request", err)
	}
	if err := c.tr.Send(data); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.Timeout, fmt.Sprintf("timed out waiting for response to %s", method), ctx.Err())
	case <-c.done:
		return nil, apperr.New(apperr.ConnectionFailed, "connection closed")
	}
}

// Notify sends a one-way notification; no response is expected.
func (c *Connection) Notify(method string, params interface{}) error {
	notif, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return apperr.Wrap(apperr.InvalidMessage, "failed to marshal notification params", err)
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return apperr.Wrap(apperr.InvalidMessage, "failed to marshal notification", err)
	}
	return c.tr.Send(data)
}

// Respond sends a response to a request the agent sent the host.
func (c *Connection) Respond(id interface{}, result interface{}, rpcErr *jsonrpc.Error) error {
	resp, err := jsonrpc.NewResponse(id, result, rpcErr)
	if err != nil {
		return apperr.Wrap(apperr.InvalidMessage, "failed to marshal response", err)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return apperr.Wrap(apperr.InvalidMessage, "failed to marshal response", err)
	}
	return c.tr.Send(data)
}

// Initialize performs the ACP handshake and stores the negotiated
// capabilities.
func (c *Connection) Initialize(ctx context.Context, clientInfo protocol.ClientInfo) (protocol.AgentCapabilities, error) {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      clientInfo,
		Capabilities:    protocol.DefaultClientCapabilities(),
	}
	resp, err := c.Call(ctx, jsonrpc.MethodInitialize, params)
	if err != nil {
		return protocol.AgentCapabilities{}, err
	}
	if resp.Error != nil {
		return protocol.AgentCapabilities{}, apperr.New(apperr.ConnectionFailed, "initialize rejected: "+resp.Error.Message)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return protocol.AgentCapabilities{}, apperr.Wrap(apperr.InvalidMessage, "failed to parse initialize result", err)
	}

	c.capsMu.Lock()
	c.capabilities = result.Capabilities
	c.capsMu.Unlock()

	return result.Capabilities, nil
}

// MCPServerParams describes one MCP server the agent should make available
// to the session, mirroring the subset of an MCP stdio-transport launch
// recipe ("name", "command", "args", "env") the ACP session/new method
// forwards verbatim (spec.md §3: "mcpServers" on NewSessionParams).
type MCPServerParams struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// NewSessionParams is the request body for session/new.
type NewSessionParams struct {
	Cwd        string            `json:"cwd"`
	MCPServers []MCPServerParams `json:"mcpServers,omitempty"`
}

// NewSessionResult is session/new's response body.
type NewSessionResult struct {
	SessionID string `json:"sessionId"`
}

// NewSession starts a fresh agent session rooted at cwd, optionally
// declaring MCP servers the agent should connect out to.
func (c *Connection) NewSession(ctx context.Context, cwd string, mcpServers ...MCPServerParams) (string, error) {
	resp, err := c.Call(ctx, jsonrpc.MethodSessionNew, NewSessionParams{Cwd: cwd, MCPServers: mcpServers})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", apperr.New(apperr.InvalidMessage, "session/new error: "+resp.Error.Message)
	}
	var result NewSessionResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", apperr.Wrap(apperr.InvalidMessage, "failed to parse session/new result", err)
	}
	return result.SessionID, nil
}

// LoadSessionParams is the request body for session/load.
type LoadSessionParams struct {
	SessionID string `json:"sessionId"`
	Cwd       string `json:"cwd"`
}

// LoadSession resumes a previously created agent session.
func (c *Connection) LoadSession(ctx context.Context, sessionID, cwd string) error {
	resp, err := c.Call(ctx, jsonrpc.MethodSessionLoad, LoadSessionParams{SessionID: sessionID, Cwd: cwd})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return apperr.New(apperr.InvalidMessage, "session/load error: "+resp.Error.Message)
	}
	return nil
}

// PromptParams is the request body for session/prompt.
type PromptParams struct {
	SessionID string                  `json:"sessionId"`
	Prompt    []protocol.ContentBlock `json:"prompt"`
}

// Prompt sends content blocks to the agent and blocks until it reports a
// stop_reason, returning the folded protocol.PromptResponse.
func (c *Connection) Prompt(ctx context.Context, sessionID string, content []protocol.ContentBlock) (protocol.PromptResponse, error) {
	resp, err := c.Call(ctx, jsonrpc.MethodSessionPrompt, PromptParams{SessionID: sessionID, Prompt: content})
	if err != nil {
		return protocol.PromptResponse{}, err
	}
	if resp.Error != nil {
		return protocol.PromptResponse{}, apperr.New(apperr.InvalidMessage, "session/prompt error: "+resp.Error.Message)
	}
	var result protocol.PromptResponse
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return protocol.PromptResponse{}, apperr.Wrap(apperr.InvalidMessage, "failed to parse session/prompt result", err)
	}
	return result, nil
}

// CancelParams is the notification body for session/cancel.
type CancelParams struct {
	SessionID string `json:"sessionId"`
}

// Cancel asks the agent to abort the current turn for sessionID.
// session/cancel is a notification: no response is awaited.
func (c *Connection) Cancel(sessionID string) error {
	return c.Notify(jsonrpc.MethodSessionCancel, CancelParams{SessionID: sessionID})
}

// Close terminates the underlying transport and unblocks any pending
// calls.
func (c *Connection) Close(grace time.Duration) error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.tr.Terminate(grace)
}

func (c *Connection) dispatchLoop() {
	ctx := context.Background()
	for {
		line, err := c.tr.RecvLine(ctx)
		if err != nil {
			c.log.Debug("dispatch loop exiting", zap.Error(err))
			return
		}

		kind, id, method, result, rpcErr, params, err := jsonrpc.Peek(line)
		if err != nil {
			c.log.Warn("failed to peek inbound line", zap.Error(err))
			continue
		}

		switch kind {
		case jsonrpc.KindResponse:
			c.handleResponse(id, result, rpcErr)
		case jsonrpc.KindNotification:
			c.handleNotification(method, params)
		case jsonrpc.KindRequest:
			c.handleAgentRequest(id, method, params)
		default:
			c.log.Warn("received unrecognized message shape", zap.ByteString("line", line))
		}
	}
}

func (c *Connection) handleResponse(id interface{}, result json.RawMessage, rpcErr *jsonrpc.Error) {
	key, ok := toUint64(id)
	if !ok {
		c.log.Warn("response id is not a known request id shape", zap.Any("id", id))
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[key]
	c.mu.Unlock()
	if !ok {
		c.log.Warn("received response for unknown or expired request", zap.Any("id", id))
		return
	}
	ch <- &jsonrpc.Response{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr}
}

func (c *Connection) handleNotification(method string, params json.RawMessage) {
	switch jsonrpc.CanonicalMethod(method) {
	case jsonrpc.NotificationSessionUpdate:
		update, err := protocol.DecodeSessionUpdate(params)
		if err != nil {
			c.log.Warn("failed to decode session/update", zap.Error(err))
			return
		}
		c.updates.Publish(update)
	case jsonrpc.NotificationProgress:
		c.log.Debug("received progress notification", zap.ByteString("params", params))
	default:
		c.log.Debug("received unhandled notification", zap.String("method", method))
	}
}

func (c *Connection) handleAgentRequest(id interface{}, method string, params json.RawMessage) {
	if c.onAgentRequest == nil {
		c.log.Warn("no agent request handler registered", zap.String("method", method))
		_ = c.Respond(id, nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "no handler registered for " + method})
		return
	}
	go c.onAgentRequest(context.Background(), id, jsonrpc.CanonicalMethod(method), params)
}

// toUint64 recovers the uint64 request id Call assigned, from the
// normalized id Peek produced (int64 or string).
func toUint64(id interface{}) (uint64, bool) {
	switch v := id.(type) {
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		var n uint64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

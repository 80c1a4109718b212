package connection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayridge/acphost/internal/common/logger"
	"github.com/grayridge/acphost/internal/transport"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// scriptedAgent is a minimal shell one-liner that replies to exactly one
// initialize request, then emits a session/update notification, used to
// exercise Connection without a real agent binary.
const scriptedAgent = `
read -r line
echo '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":1,"capabilities":{"loadSession":true,"fs":{"readTextFile":true}}}}'
echo '{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s1","update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"hello"}}}}'
sleep 5
`

// sessionScriptedAgent replies to initialize, then session/new, then
// session/prompt with a completed stop_reason.
const sessionScriptedAgent = `
read -r line
echo '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":1,"capabilities":{"loadSession":true}}}'
read -r line
echo '{"jsonrpc":"2.0","id":2,"result":{"sessionId":"sess-42"}}'
read -r line
echo '{"jsonrpc":"2.0","id":3,"result":{"stopReason":"end_turn"}}'
sleep 5
`

func newScriptedConnection(t *testing.T) *Connection {
	t.Helper()
	tr, err := transport.Spawn(context.Background(), "sh", []string{"-c", scriptedAgent}, nil, "", logger.Default())
	require.NoError(t, err)
	return New(tr, logger.Default())
}

func TestConnection_InitializeParsesCapabilities(t *testing.T) {
	conn := newScriptedConnection(t)
	defer conn.Close(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	caps, err := conn.Initialize(ctx, protocol.ClientInfo{Name: "acphost", Version: "test"})
	require.NoError(t, err)
	assert.True(t, caps.LoadSession)
	assert.True(t, caps.FSRead)
}

func TestConnection_ReceivesSessionUpdate(t *testing.T) {
	conn := newScriptedConnection(t)
	defer conn.Close(100 * time.Millisecond)

	updates, unsubscribe := conn.SubscribeUpdates()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := conn.Initialize(ctx, protocol.ClientInfo{Name: "acphost", Version: "test"})
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, protocol.UpdateAgentMessageChunk, u.Variant)
		assert.Equal(t, "hello", u.Content.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session update")
	}
}

func TestConnection_CallTimesOutWhenAgentIsSilent(t *testing.T) {
	tr, err := transport.Spawn(context.Background(), "sh", []string{"-c", "sleep 5"}, nil, "", logger.Default())
	require.NoError(t, err)
	conn := New(tr, logger.Default())
	defer conn.Close(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = conn.Call(ctx, "session/new", nil)
	require.Error(t, err)
}

func TestConnection_NewSessionAndPromptRoundTrip(t *testing.T) {
	tr, err := transport.Spawn(context.Background(), "sh", []string{"-c", sessionScriptedAgent}, nil, "", logger.Default())
	require.NoError(t, err)
	conn := New(tr, logger.Default())
	defer conn.Close(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = conn.Initialize(ctx, protocol.ClientInfo{Name: "acphost", Version: "test"})
	require.NoError(t, err)

	sessionID, err := conn.NewSession(ctx, "/work")
	require.NoError(t, err)
	assert.Equal(t, "sess-42", sessionID)

	result, err := conn.Prompt(ctx, sessionID, []protocol.ContentBlock{protocol.TextBlock("hi")})
	require.NoError(t, err)
	assert.Equal(t, protocol.StopEndTurn, result.StopReason)
}

func TestConnection_CancelSendsNotificationWithoutWaitingForResponse(t *testing.T) {
	tr, err := transport.Spawn(context.Background(), "sh", []string{"-c", "cat > /dev/null"}, nil, "", logger.Default())
	require.NoError(t, err)
	conn := New(tr, logger.Default())
	defer conn.Close(100 * time.Millisecond)

	assert.NoError(t, conn.Cancel("sess-1"))
}

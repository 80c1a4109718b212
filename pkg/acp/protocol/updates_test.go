package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSessionUpdate_Canonical(t *testing.T) {
	u, err := DecodeSessionUpdate([]byte(`{
		"sessionId":"S1",
		"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"hi"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "S1", u.SessionID)
	assert.Equal(t, UpdateAgentMessageChunk, u.Variant)
	assert.Equal(t, "hi", u.Content.Text)
}

func TestDecodeSessionUpdate_FlatShape(t *testing.T) {
	u, err := DecodeSessionUpdate([]byte(`{
		"sessionId":"S2",
		"sessionUpdate":"tool_call",
		"toolCallId":"tc1",
		"title":"Edit file",
		"kind":"edit",
		"status":"pending"
	}`))
	require.NoError(t, err)
	assert.Equal(t, UpdateToolCall, u.Variant)
	assert.Equal(t, "tc1", u.ToolCallID)
	assert.Equal(t, ToolCallEdit, u.Kind)
	assert.Equal(t, ToolCallPending, u.Status)
}

func TestDecodeSessionUpdate_ThoughtAlias(t *testing.T) {
	u, err := DecodeSessionUpdate([]byte(`{
		"sessionId":"S3",
		"update":{"sessionUpdate":"thought","content":{"type":"text","text":"thinking"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, UpdateAgentThoughtChunk, u.Variant)
}

func TestDecodeSessionUpdate_Plan(t *testing.T) {
	u, err := DecodeSessionUpdate([]byte(`{
		"sessionId":"S4",
		"update":{"sessionUpdate":"plan","entries":[{"content":"step 1","status":"pending"}]}
	}`))
	require.NoError(t, err)
	assert.Equal(t, UpdatePlan, u.Variant)
	require.Len(t, u.Plan, 1)
	assert.Equal(t, "step 1", u.Plan[0].Content)
}

func TestDecodeSessionUpdate_CurrentModeUpdate(t *testing.T) {
	u, err := DecodeSessionUpdate([]byte(`{"sessionId":"S5","update":{"sessionUpdate":"current_mode_update","currentModeId":"plan-mode"}}`))
	require.NoError(t, err)
	assert.Equal(t, UpdateCurrentModeUpdate, u.Variant)
	assert.Equal(t, "plan-mode", u.ModeID)
}

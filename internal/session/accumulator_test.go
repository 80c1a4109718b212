package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayridge/acphost/pkg/acp/protocol"
)

func TestAccumulator_ExtendsConsecutiveSameRoleChunks(t *testing.T) {
	a := NewAccumulator("s1")
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateAgentMessageChunk, Content: protocol.TextBlock("Hel")})
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateAgentMessageChunk, Content: protocol.TextBlock("lo")})

	require.Len(t, a.State().Messages, 1)
	assert.Equal(t, "Hello", a.State().Messages[0].Text)
}

func TestAccumulator_AppendsOnRoleChange(t *testing.T) {
	a := NewAccumulator("s1")
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateAgentMessageChunk, Content: protocol.TextBlock("hi")})
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateUserMessageChunk, Content: protocol.TextBlock("hey")})
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateAgentMessageChunk, Content: protocol.TextBlock("again")})

	require.Len(t, a.State().Messages, 3)
	assert.Equal(t, RoleAgent, a.State().Messages[0].Role)
	assert.Equal(t, RoleUser, a.State().Messages[1].Role)
	assert.Equal(t, RoleAgent, a.State().Messages[2].Role)
}

func TestAccumulator_PlanReplacesNotMerges(t *testing.T) {
	a := NewAccumulator("s1")
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdatePlan, Plan: []protocol.PlanEntry{{Content: "step 1", Status: "pending"}}})
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdatePlan, Plan: []protocol.PlanEntry{{Content: "step A", Status: "pending"}, {Content: "step B", Status: "pending"}}})

	require.Len(t, a.State().Plan, 2)
	assert.Equal(t, "step A", a.State().Plan[0].Content)
}

func TestAccumulator_ToolCallOpenThenUpdate(t *testing.T) {
	a := NewAccumulator("s1")
	a.Fold(protocol.SessionUpdate{
		Variant: protocol.UpdateToolCall, ToolCallID: "tc1", Title: "Edit foo.go",
		Kind: protocol.ToolCallEdit, Status: protocol.ToolCallPending,
	})
	a.Fold(protocol.SessionUpdate{
		Variant: protocol.UpdateToolCallUpdate, ToolCallID: "tc1", Status: protocol.ToolCallCompleted,
		ToolContent: []protocol.ContentBlock{{Type: "diff", Diff: &protocol.FileDiff{Path: "foo.go", OldText: "a", NewText: "b"}}},
	})

	tc, ok := a.State().ToolCalls["tc1"]
	require.True(t, ok)
	assert.Equal(t, protocol.ToolCallCompleted, tc.Status)
	require.Len(t, tc.Artifacts, 1)
	assert.Equal(t, "foo.go", tc.Artifacts[0].Path)
	assert.NotEmpty(t, tc.Artifacts[0].Diff.Unified)
}

func TestAccumulator_ToolCallOrderIsStable(t *testing.T) {
	a := NewAccumulator("s1")
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateToolCall, ToolCallID: "a"})
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateToolCall, ToolCallID: "b"})
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateToolCallUpdate, ToolCallID: "a", Status: protocol.ToolCallCompleted})

	order := a.State().ToolCallsInOrder()
	require.Len(t, order, 2)
	assert.Equal(t, "a", order[0].ID)
	assert.Equal(t, "b", order[1].ID)
}

func TestAccumulator_FoldPromptResponseMapsMaxTokensToProgressing(t *testing.T) {
	a := NewAccumulator("s1")
	a.FoldPromptResponse(protocol.PromptResponse{StopReason: protocol.StopMaxTokens})
	assert.Equal(t, StatusProgressing, a.State().Status)
}

func TestAccumulator_FoldPromptResponseMapsErrorToError(t *testing.T) {
	a := NewAccumulator("s1")
	a.FoldPromptResponse(protocol.PromptResponse{StopReason: protocol.StopError})
	assert.Equal(t, StatusError, a.State().Status)
}

func TestAccumulator_PlanAdvancesPendingToPlanning(t *testing.T) {
	a := NewAccumulator("s1")
	assert.Equal(t, StatusPending, a.State().Status)
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdatePlan, Plan: []protocol.PlanEntry{{Content: "step 1"}}})
	assert.Equal(t, StatusPlanning, a.State().Status)
}

func TestAccumulator_ToolCallOpenAdvancesToExecuting(t *testing.T) {
	a := NewAccumulator("s1")
	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateToolCall, ToolCallID: "tc1"})
	assert.Equal(t, StatusExecuting, a.State().Status)
}

func TestAccumulator_TerminalStatusFreezesFurtherFolds(t *testing.T) {
	a := NewAccumulator("s1")
	a.FoldPromptResponse(protocol.PromptResponse{StopReason: protocol.StopEndTurn})
	require.Equal(t, StatusCompleted, a.State().Status)

	a.Fold(protocol.SessionUpdate{Variant: protocol.UpdateAgentMessageChunk, Content: protocol.TextBlock("late")})
	assert.Empty(t, a.State().Messages)
	assert.Equal(t, StatusCompleted, a.State().Status)
}

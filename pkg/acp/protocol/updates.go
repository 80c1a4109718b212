package protocol

import "encoding/json"

// UpdateVariant discriminates a session/update notification payload.
type UpdateVariant string

const (
	UpdateAgentMessageChunk      UpdateVariant = "agent_message_chunk"
	UpdateUserMessageChunk       UpdateVariant = "user_message_chunk"
	UpdateAgentThoughtChunk      UpdateVariant = "agent_thought_chunk"
	UpdateToolCall               UpdateVariant = "tool_call"
	UpdateToolCallUpdate         UpdateVariant = "tool_call_update"
	UpdatePlan                   UpdateVariant = "plan"
	UpdateCurrentModeUpdate      UpdateVariant = "current_mode_update"
	UpdateAvailableCommandsUpdate UpdateVariant = "available_commands_update"
)

// canonicalVariant collapses the "thought" alias to agent_thought_chunk
// (spec.md §4.2).
func canonicalVariant(v string) UpdateVariant {
	if v == "thought" {
		return UpdateAgentThoughtChunk
	}
	return UpdateVariant(v)
}

// ToolCallKind enumerates the kinds of work a tool call can represent.
type ToolCallKind string

const (
	ToolCallRead    ToolCallKind = "read"
	ToolCallWrite   ToolCallKind = "write"
	ToolCallEdit    ToolCallKind = "edit"
	ToolCallDelete  ToolCallKind = "delete"
	ToolCallMove    ToolCallKind = "move"
	ToolCallExecute ToolCallKind = "execute"
	ToolCallSearch  ToolCallKind = "search"
	ToolCallFetch   ToolCallKind = "fetch"
	ToolCallOther   ToolCallKind = "other"
)

// ToolCallStatus is the lifecycle state of a tool call.
type ToolCallStatus string

const (
	ToolCallPending    ToolCallStatus = "pending"
	ToolCallInProgress ToolCallStatus = "in_progress"
	ToolCallCompleted  ToolCallStatus = "completed"
	ToolCallFailed     ToolCallStatus = "failed"
	ToolCallCancelled  ToolCallStatus = "cancelled"
)

// StopReason is the terminal reason a prompt finished.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopCancelled StopReason = "cancelled"
	StopError     StopReason = "error"
	StopMaxTokens StopReason = "max_tokens"
)

// PlanEntry is one item of a plan replacement.
type PlanEntry struct {
	Content  string `json:"content"`
	Priority string `json:"priority,omitempty"`
	Status   string `json:"status"` // pending, in_progress, completed
}

// SessionUpdate is the decoded, variant-tagged payload of a session/update
// notification, independent of whether the wire used the canonical nested
// shape or the deprecated flat shape.
type SessionUpdate struct {
	SessionID string
	Variant   UpdateVariant

	// agent_message_chunk / user_message_chunk / agent_thought_chunk
	Content ContentBlock

	// tool_call / tool_call_update
	ToolCallID string
	Title      string
	Kind       ToolCallKind
	Status     ToolCallStatus
	Input      json.RawMessage
	Output     json.RawMessage
	ToolContent []ContentBlock

	// plan
	Plan []PlanEntry

	// current_mode_update
	ModeID string

	// available_commands_update (accepted, not retained per spec.md §4.6)
	AvailableCommands json.RawMessage
}

// wireUpdate is the on-the-wire shape of a single update payload, shared
// between the canonical nested form and the deprecated flat form.
type wireUpdate struct {
	SessionUpdate string          `json:"sessionUpdate"`
	Content       *ContentBlock   `json:"content,omitempty"`
	ToolCallID    string          `json:"toolCallId,omitempty"`
	Title         string          `json:"title,omitempty"`
	Kind          string          `json:"kind,omitempty"`
	Status        string          `json:"status,omitempty"`
	Input         json.RawMessage `json:"input,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
	ToolContent   []ContentBlock  `json:"content_fragments,omitempty"`
	Entries       []PlanEntry     `json:"entries,omitempty"`
	ModeID        string          `json:"currentModeId,omitempty"`
	Commands      json.RawMessage `json:"availableCommands,omitempty"`
}

// DecodeSessionUpdate parses the params of a session/update notification,
// accepting both the canonical `{sessionId, update:{sessionUpdate:"...",
// ...}}` shape and the deprecated flat shape with the discriminant and
// fields hoisted to the top level (spec.md §4.2).
func DecodeSessionUpdate(params json.RawMessage) (SessionUpdate, error) {
	var envelope struct {
		SessionID string          `json:"sessionId"`
		Update    json.RawMessage `json:"update"`
		wireUpdate
	}
	if err := json.Unmarshal(params, &envelope); err != nil {
		return SessionUpdate{}, err
	}

	var wu wireUpdate
	if len(envelope.Update) > 0 {
		if err := json.Unmarshal(envelope.Update, &wu); err != nil {
			return SessionUpdate{}, err
		}
	} else {
		wu = envelope.wireUpdate
	}

	out := SessionUpdate{
		SessionID:  envelope.SessionID,
		Variant:    canonicalVariant(wu.SessionUpdate),
		ToolCallID: wu.ToolCallID,
		Title:      wu.Title,
		Kind:       ToolCallKind(wu.Kind),
		Status:     ToolCallStatus(wu.Status),
		Input:      wu.Input,
		Output:     wu.Output,
		ToolContent: wu.ToolContent,
		Plan:       wu.Entries,
		ModeID:     wu.ModeID,
		AvailableCommands: wu.Commands,
	}
	if wu.Content != nil {
		out.Content = *wu.Content
	}
	return out, nil
}

// PromptResponse is the result of an awaited session/prompt call.
type PromptResponse struct {
	StopReason StopReason `json:"stopReason"`
}

// Package session holds the per-prompt TaskState accumulator: the fold
// of streamed session/update notifications into a coherent view of an
// in-flight or completed agent turn (spec.md §3, §4.6).
package session

import (
	"time"

	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// Status is the lifecycle state of a TaskState.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPlanning    Status = "planning"
	StatusExecuting   Status = "executing"
	StatusProgressing Status = "progressing"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusError       Status = "error"
)

// MessageRole distinguishes agent output from echoed user input.
type MessageRole string

const (
	RoleAgent        MessageRole = "agent"
	RoleUser         MessageRole = "user"
	RoleAgentThought MessageRole = "agent_thought"
)

// Message is one entry of the folded message log. Consecutive chunks of
// the same role are extended in place; a role change appends a new entry
// (spec.md §4.6 "message log with variant-based extend-vs-append rule").
type Message struct {
	Role MessageRole
	Text string
}

// ToolCallState is the accumulated view of a single tool call, opened by
// a tool_call update and mutated by subsequent tool_call_update updates.
type ToolCallState struct {
	ID          string
	Title       string
	Kind        protocol.ToolCallKind
	Status      protocol.ToolCallStatus
	Content     []protocol.ContentBlock
	Artifacts   []Artifact
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ArtifactKind classifies what an Artifact describes.
type ArtifactKind string

const (
	ArtifactFileCreated      ArtifactKind = "file_created"
	ArtifactFileModified     ArtifactKind = "file_modified"
	ArtifactFileDeleted      ArtifactKind = "file_deleted"
	ArtifactFileMoved        ArtifactKind = "file_moved"
	ArtifactDirectoryCreated ArtifactKind = "directory_created"
	ArtifactTerminalOutput   ArtifactKind = "terminal_output"
)

// ArtifactSource identifies which layer attributed an Artifact (spec.md
// §3: "a source tag identifying which layer attributed it").
type ArtifactSource string

const (
	SourceDirectToolCall  ArtifactSource = "direct_from_tool_call"
	SourceWatcherInferred ArtifactSource = "watcher_inferred"
	SourceSemanticExtract ArtifactSource = "semantic_extracted"
)

// Artifact is a derived byproduct of a tool call: a file create/modify/
// delete/move, a directory creation, or a captured terminal output
// (spec.md §3, §4.6).
type Artifact struct {
	Kind    ArtifactKind
	Source  ArtifactSource
	Path    string
	OldPath string
	NewPath string
	Diff    *protocol.FileDiff
	Command string
	Output  string
	ToolID  string
}

// TaskState is the full accumulated state of one session/prompt turn.
type TaskState struct {
	TaskID       string
	SessionID    string
	AgentID      string
	Status       Status
	StopReason   protocol.StopReason
	ErrorMessage string

	// PromptContent is the content submitted to start this turn, and
	// WorkingDir is the directory the owning session was rooted at when
	// it was submitted.
	PromptContent []protocol.ContentBlock
	WorkingDir    string

	Plan     []protocol.PlanEntry
	Messages []Message

	ToolCalls map[string]*ToolCallState
	toolOrder []string

	// Artifacts holds byproducts attributed to this turn as a whole
	// rather than to any single tool call — notably filesystem changes
	// the sandbox watcher inferred after the fact (SourceWatcherInferred),
	// which may not correspond to any tool call the agent reported.
	Artifacts []Artifact

	CurrentModeID string

	StartedAt time.Time
	UpdatedAt time.Time
}

// NewTaskState creates an empty TaskState for one prompt turn: taskID and
// agentID identify it, sessionID ties it to its owning session, and
// workingDir/prompt record what was submitted to start it (spec.md §3).
func NewTaskState(taskID, sessionID, agentID, workingDir string, prompt []protocol.ContentBlock) *TaskState {
	now := time.Now()
	return &TaskState{
		TaskID:        taskID,
		SessionID:     sessionID,
		AgentID:       agentID,
		WorkingDir:    workingDir,
		PromptContent: prompt,
		Status:        StatusPending,
		ToolCalls:     make(map[string]*ToolCallState),
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// ToolCallsInOrder returns tool calls in first-seen order, useful for
// deterministic rendering and tests.
func (t *TaskState) ToolCallsInOrder() []*ToolCallState {
	out := make([]*ToolCallState, 0, len(t.toolOrder))
	for _, id := range t.toolOrder {
		if tc, ok := t.ToolCalls[id]; ok {
			out = append(out, tc)
		}
	}
	return out
}

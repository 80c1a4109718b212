package session

import (
	"encoding/json"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/grayridge/acphost/internal/sandbox"
	"github.com/grayridge/acphost/pkg/acp/protocol"
)

// Accumulator folds a stream of protocol.SessionUpdate values into a
// single TaskState, implementing the extend-vs-append and tool-call
// open/update rules of spec.md §4.6.
type Accumulator struct {
	sessionID string
	state     *TaskState
	dmp       *diffmatchpatch.DiffMatchPatch
}

// NewAccumulator starts a fresh fold for sessionID. The returned
// Accumulator has no task identity yet; BeginTask assigns one when a
// prompt turn actually starts.
func NewAccumulator(sessionID string) *Accumulator {
	return &Accumulator{
		sessionID: sessionID,
		state:     NewTaskState("", sessionID, "", "", nil),
		dmp:       diffmatchpatch.New(),
	}
}

// State returns the current accumulated TaskState. The caller must treat
// it as read-only; Fold is the only mutator.
func (a *Accumulator) State() *TaskState {
	return a.state
}

// BeginTask starts folding a new prompt turn, replacing whatever TaskState
// the previous turn left behind (spec.md §3: "one TaskState per
// session/prompt turn").
func (a *Accumulator) BeginTask(taskID, agentID, workingDir string, prompt []protocol.ContentBlock) {
	a.state = NewTaskState(taskID, a.sessionID, agentID, workingDir, prompt)
}

// ActiveToolCalls returns the tool calls currently open (not yet
// completed, failed, or cancelled) in the task state being folded, for
// the sandbox watcher to attribute filesystem changes against.
func (a *Accumulator) ActiveToolCalls() []sandbox.ActiveToolCall {
	var active []sandbox.ActiveToolCall
	for _, id := range a.state.toolOrder {
		tc, ok := a.state.ToolCalls[id]
		if !ok || isDoneStatus(tc.Status) {
			continue
		}
		active = append(active, sandbox.ActiveToolCall{
			ToolCallID:    tc.ID,
			Method:        string(tc.Kind),
			DeclaredPaths: declaredPaths(tc),
			StartedAt:     tc.UpdatedAt,
		})
	}
	return active
}

func isDoneStatus(s protocol.ToolCallStatus) bool {
	return s == protocol.ToolCallCompleted || s == protocol.ToolCallFailed || s == protocol.ToolCallCancelled
}

// declaredPaths collects the paths a tool call has named so far, from its
// artifacts, for the watcher's exact-path attribution check.
func declaredPaths(tc *ToolCallState) []string {
	var paths []string
	for _, a := range tc.Artifacts {
		switch {
		case a.Path != "":
			paths = append(paths, a.Path)
		case a.NewPath != "":
			paths = append(paths, a.NewPath)
		}
	}
	return paths
}

// AddArtifact appends a turn-level artifact, used by the sandbox watcher
// to record a filesystem change it attributed after the fact rather than
// from a tool call's own reported input/output.
func (a *Accumulator) AddArtifact(artifact Artifact) {
	a.state.Artifacts = append(a.state.Artifacts, artifact)
}

// isTerminal reports whether s is one of the statuses a TaskState cannot
// leave once reached.
func isTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// Fold applies one update to the accumulated state. Once the state has
// reached a terminal status it is frozen except for UpdatedAt (spec.md
// §3 invariant iii).
func (a *Accumulator) Fold(u protocol.SessionUpdate) {
	a.state.UpdatedAt = time.Now()
	if isTerminal(a.state.Status) {
		return
	}

	switch u.Variant {
	case protocol.UpdateAgentMessageChunk:
		a.appendOrExtend(RoleAgent, u.Content.Text)
	case protocol.UpdateUserMessageChunk:
		a.appendOrExtend(RoleUser, u.Content.Text)
	case protocol.UpdateAgentThoughtChunk:
		a.appendOrExtend(RoleAgentThought, u.Content.Text)
	case protocol.UpdateToolCall:
		a.openToolCall(u)
	case protocol.UpdatePlan:
		// A plan update replaces the whole plan, it never merges with the
		// previous one (spec.md §4.6: "plan replace").
		a.state.Plan = u.Plan
		if a.state.Status == StatusPending {
			a.state.Status = StatusPlanning
		}
	case protocol.UpdateToolCallUpdate:
		a.updateToolCall(u)
	case protocol.UpdateCurrentModeUpdate:
		a.state.CurrentModeID = u.ModeID
	case protocol.UpdateAvailableCommandsUpdate:
		// Accepted, not retained: available commands inform the client's
		// own UI affordances, not the folded task state.
	}
}

// appendOrExtend implements the message-log variant-based rule: a chunk
// whose role matches the last message's role extends it in place;
// otherwise a new message entry is appended.
func (a *Accumulator) appendOrExtend(role MessageRole, text string) {
	if text == "" {
		return
	}
	n := len(a.state.Messages)
	if n > 0 && a.state.Messages[n-1].Role == role {
		a.state.Messages[n-1].Text += text
		return
	}
	a.state.Messages = append(a.state.Messages, Message{Role: role, Text: text})
}

func (a *Accumulator) openToolCall(u protocol.SessionUpdate) {
	tc := &ToolCallState{
		ID:        u.ToolCallID,
		Title:     u.Title,
		Kind:      u.Kind,
		Status:    u.Status,
		UpdatedAt: time.Now(),
	}
	if tc.Status == "" {
		tc.Status = protocol.ToolCallPending
	}
	if _, exists := a.state.ToolCalls[tc.ID]; !exists {
		a.state.toolOrder = append(a.state.toolOrder, tc.ID)
	}
	a.state.ToolCalls[tc.ID] = tc
	a.appendToolContent(tc, u)
	a.state.Status = StatusExecuting
}

func (a *Accumulator) updateToolCall(u protocol.SessionUpdate) {
	tc, ok := a.state.ToolCalls[u.ToolCallID]
	if !ok {
		// An update for a tool call we never saw opened: synthesize one so
		// the fold stays total rather than silently dropping data.
		tc = &ToolCallState{ID: u.ToolCallID}
		a.state.ToolCalls[tc.ID] = tc
		a.state.toolOrder = append(a.state.toolOrder, tc.ID)
	}
	if u.Kind != "" {
		tc.Kind = u.Kind
	}
	if u.Status != "" {
		tc.Status = u.Status
	}
	if u.Title != "" {
		tc.Title = u.Title
	}
	now := time.Now()
	tc.UpdatedAt = now
	a.appendToolContent(tc, u)

	if tc.Status == protocol.ToolCallCompleted {
		tc.CompletedAt = &now
		a.extractCompletionArtifacts(tc, u)
	}
}

// completionInput/completionOutput decode the subset of a tool call's
// input/output JSON the artifact-extraction rules need, ignoring fields
// that don't apply to the tool's kind.
type completionInput struct {
	Path    string `json:"path"`
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

type completionOutput struct {
	Stdout string `json:"stdout"`
}

// extractCompletionArtifacts derives an Artifact from a completed tool
// call's kind and input/output, per spec.md §4.6's per-kind rules.
func (a *Accumulator) extractCompletionArtifacts(tc *ToolCallState, u protocol.SessionUpdate) {
	var in completionInput
	_ = json.Unmarshal(u.Input, &in)

	switch tc.Kind {
	case protocol.ToolCallWrite:
		if in.Path == "" {
			return
		}
		tc.Artifacts = append(tc.Artifacts, Artifact{
			Kind: ArtifactFileCreated, Source: SourceDirectToolCall, Path: in.Path, ToolID: tc.ID,
		})
	case protocol.ToolCallDelete:
		if in.Path == "" {
			return
		}
		tc.Artifacts = append(tc.Artifacts, Artifact{
			Kind: ArtifactFileDeleted, Source: SourceDirectToolCall, Path: in.Path, ToolID: tc.ID,
		})
	case protocol.ToolCallMove:
		if in.OldPath == "" && in.NewPath == "" {
			return
		}
		tc.Artifacts = append(tc.Artifacts, Artifact{
			Kind: ArtifactFileMoved, Source: SourceDirectToolCall, OldPath: in.OldPath, NewPath: in.NewPath, ToolID: tc.ID,
		})
	case protocol.ToolCallExecute:
		var out completionOutput
		_ = json.Unmarshal(u.Output, &out)
		tc.Artifacts = append(tc.Artifacts, Artifact{
			Kind: ArtifactTerminalOutput, Source: SourceDirectToolCall, Command: tc.Title, Output: out.Stdout, ToolID: tc.ID,
		})
	}
}

func (a *Accumulator) appendToolContent(tc *ToolCallState, u protocol.SessionUpdate) {
	tc.Content = append(tc.Content, u.ToolContent...)
	for i := range u.ToolContent {
		block := u.ToolContent[i]
		if block.Diff == nil {
			continue
		}
		diff := *block.Diff
		source := SourceDirectToolCall
		if diff.Unified == "" && (diff.OldText != "" || diff.NewText != "") {
			// The tool call's content carried raw before/after text rather
			// than a ready-made diff: computing the unified form here is
			// deriving structure from unstructured content, the same kind
			// of extraction spec.md's glossary calls semantic-extracted
			// rather than a value read straight off the tool call's input.
			diffs := a.dmp.DiffMain(diff.OldText, diff.NewText, false)
			diff.Unified = a.dmp.PatchToText(a.dmp.PatchMake(diff.OldText, diffs))
			source = SourceSemanticExtract
		}
		tc.Artifacts = append(tc.Artifacts, Artifact{
			Kind: ArtifactFileModified, Source: source, Path: diff.Path, Diff: &diff, ToolID: tc.ID,
		})
	}
}

// FoldPromptResponse closes out the task state from the result of an
// awaited session/prompt call, mapping its stop reason to status
// (spec.md §4.6). A stopReason of "max_tokens" maps to "progressing"
// rather than a terminal status: the agent ran out of budget mid-turn
// and the host is expected to continue the turn with a follow-up
// prompt, so the record stays open for further folds.
func (a *Accumulator) FoldPromptResponse(resp protocol.PromptResponse) {
	a.state.StopReason = resp.StopReason
	a.state.UpdatedAt = time.Now()
	switch resp.StopReason {
	case protocol.StopEndTurn:
		a.state.Status = StatusCompleted
	case protocol.StopCancelled:
		a.state.Status = StatusCancelled
	case protocol.StopError:
		a.state.Status = StatusError
		if a.state.ErrorMessage == "" {
			a.state.ErrorMessage = "agent reported stop_reason=error"
		}
	case protocol.StopMaxTokens:
		a.state.Status = StatusProgressing
	default:
		a.state.Status = StatusCompleted
	}
}

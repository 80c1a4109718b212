package sandbox

import (
	"os"
	"path/filepath"
	"time"
)

// FileStamp is the cheap {size, mtime} snapshot a baseline records per
// file; content hashing is skipped for cost (spec.md §4.5.4).
type FileStamp struct {
	Size    int64
	ModTime time.Time
}

// Baseline is a point-in-time snapshot of a working directory's files,
// taken at session start when change tracking is enabled for a session.
type Baseline struct {
	Root   string
	Stamps map[string]FileStamp
}

// Snapshot walks root and records a FileStamp per regular file.
func Snapshot(root string) (*Baseline, error) {
	stamps := make(map[string]FileStamp)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		stamps[rel] = FileStamp{Size: info.Size(), ModTime: info.ModTime()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Baseline{Root: root, Stamps: stamps}, nil
}

// ChangeKind classifies one entry in a ChangeSet.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change is one detected filesystem delta relative to a Baseline, not
// yet attributed to a cause.
type Change struct {
	RelPath string
	Kind    ChangeKind
}

// ChangesSinceBaseline rescans b.Root and reports {created, modified,
// deleted} deltas by comparing {size, mtime} pairs against the
// baseline. This is best-effort, not authoritative: a file rewritten
// with identical size and mtime (e.g. within filesystem timestamp
// resolution) will not be detected.
func ChangesSinceBaseline(b *Baseline) ([]Change, error) {
	current, err := Snapshot(b.Root)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for rel, stamp := range current.Stamps {
		before, existed := b.Stamps[rel]
		switch {
		case !existed:
			changes = append(changes, Change{RelPath: rel, Kind: ChangeCreated})
		case before.Size != stamp.Size || !before.ModTime.Equal(stamp.ModTime):
			changes = append(changes, Change{RelPath: rel, Kind: ChangeModified})
		}
	}
	for rel := range b.Stamps {
		if _, stillExists := current.Stamps[rel]; !stillExists {
			changes = append(changes, Change{RelPath: rel, Kind: ChangeDeleted})
		}
	}
	return changes, nil
}

// AttributionKind classifies what caused a detected Change.
type AttributionKind string

const (
	AttributionACPOperation AttributionKind = "acp_operation"
	AttributionInferred     AttributionKind = "inferred"
	AttributionUserAction   AttributionKind = "user_action"
)

// Attribution is the outcome of classifying a Change against the set of
// tool calls active around the time it was detected.
type Attribution struct {
	Kind              AttributionKind
	ToolCallID        string
	Method            string
	Confidence        float64
}

// ActiveToolCall describes a tool call the accumulator currently has
// open (not completed, failed or cancelled), used as input to Attribute.
type ActiveToolCall struct {
	ToolCallID    string
	Method        string
	DeclaredPaths []string
	StartedAt     time.Time
}

// inferredWindow is the cutoff since a tool call started within which an
// unmatched change occurring while it's active is still attributed to it,
// at reduced confidence.
const inferredWindow = 60 * time.Second

// inferredConfidenceActive is the confidence attached to an Inferred
// attribution naming the tool call that was active when the change was
// detected.
const inferredConfidenceActive = 0.8

// inferredConfidenceStale is the confidence attached to an Inferred
// attribution when no active tool call can be pinned down as the cause.
const inferredConfidenceStale = 0.3

// Attribute classifies change against active, the tool calls the session
// accumulator reports as open at the time the change was detected. It
// walks active in order and returns on the first tool call that either
// declared the changed path or was started within inferredWindow; a tool
// call later in the list is never consulted once an earlier one matches.
// With no active tool calls at all the change is a user action; with
// active tool calls but no match within the window, it's an unattributed
// low-confidence inference.
func Attribute(change Change, active []ActiveToolCall, now time.Time) Attribution {
	for _, tc := range active {
		for _, declared := range tc.DeclaredPaths {
			if declared == change.RelPath || filepath.Clean(declared) == filepath.Clean(change.RelPath) {
				return Attribution{Kind: AttributionACPOperation, ToolCallID: tc.ToolCallID, Method: tc.Method}
			}
		}
		if now.Sub(tc.StartedAt) < inferredWindow {
			return Attribution{Kind: AttributionInferred, ToolCallID: tc.ToolCallID, Confidence: inferredConfidenceActive}
		}
	}

	if len(active) == 0 {
		return Attribution{Kind: AttributionUserAction}
	}
	return Attribution{Kind: AttributionInferred, Confidence: inferredConfidenceStale}
}

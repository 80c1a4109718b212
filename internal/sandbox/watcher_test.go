package sandbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangesSinceBaseline_DetectsCreatedModifiedDeleted(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.txt")
	modify := filepath.Join(dir, "modify.txt")
	remove := filepath.Join(dir, "remove.txt")

	require.NoError(t, os.WriteFile(keep, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(modify, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(remove, []byte("gone"), 0o644))

	baseline, err := Snapshot(dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(remove))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(modify, []byte("v2-longer"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "created.txt"), []byte("new"), 0o644))

	changes, err := ChangesSinceBaseline(baseline)
	require.NoError(t, err)

	byPath := map[string]ChangeKind{}
	for _, c := range changes {
		byPath[c.RelPath] = c.Kind
	}
	assert.Equal(t, ChangeCreated, byPath["created.txt"])
	assert.Equal(t, ChangeModified, byPath["modify.txt"])
	assert.Equal(t, ChangeDeleted, byPath["remove.txt"])
	_, keptUnchanged := byPath["keep.txt"]
	assert.False(t, keptUnchanged)
}

func TestAttribute_MatchesDeclaredPathAsAcpOperation(t *testing.T) {
	now := time.Now()
	active := []ActiveToolCall{
		{ToolCallID: "tc1", Method: "write", DeclaredPaths: []string{"src/main.go"}, StartedAt: now},
	}
	attr := Attribute(Change{RelPath: "src/main.go", Kind: ChangeModified}, active, now)
	assert.Equal(t, AttributionACPOperation, attr.Kind)
	assert.Equal(t, "tc1", attr.ToolCallID)
}

func TestAttribute_ActiveToolCallWithinWindowIsInferredWithHighConfidence(t *testing.T) {
	now := time.Now()
	active := []ActiveToolCall{
		{ToolCallID: "tc1", Method: "write", DeclaredPaths: []string{"src/other.go"}, StartedAt: now},
	}
	attr := Attribute(Change{RelPath: "src/main.go", Kind: ChangeModified}, active, now)
	assert.Equal(t, AttributionInferred, attr.Kind)
	assert.Equal(t, "tc1", attr.ToolCallID)
	assert.Equal(t, 0.8, attr.Confidence)
}

func TestAttribute_NoMatchWithinWindowIsInferredWithLowConfidenceAndNoToolCallID(t *testing.T) {
	now := time.Now()
	active := []ActiveToolCall{
		{ToolCallID: "tc1", Method: "write", DeclaredPaths: []string{"src/other.go"}, StartedAt: now.Add(-2 * time.Minute)},
	}
	attr := Attribute(Change{RelPath: "src/main.go", Kind: ChangeModified}, active, now)
	assert.Equal(t, AttributionInferred, attr.Kind)
	assert.Equal(t, "", attr.ToolCallID)
	assert.Equal(t, 0.3, attr.Confidence)
}

func TestAttribute_FirstMatchingToolCallWinsOverLaterExactPath(t *testing.T) {
	now := time.Now()
	active := []ActiveToolCall{
		{ToolCallID: "tc1", Method: "write", DeclaredPaths: []string{"src/other.go"}, StartedAt: now},
		{ToolCallID: "tc2", Method: "write", DeclaredPaths: []string{"src/main.go"}, StartedAt: now},
	}
	attr := Attribute(Change{RelPath: "src/main.go", Kind: ChangeModified}, active, now)
	assert.Equal(t, AttributionInferred, attr.Kind)
	assert.Equal(t, "tc1", attr.ToolCallID)
}

func TestAttribute_NoActiveToolCallIsUserAction(t *testing.T) {
	attr := Attribute(Change{RelPath: "src/main.go", Kind: ChangeModified}, nil, time.Now())
	assert.Equal(t, AttributionUserAction, attr.Kind)
}

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayridge/acphost/internal/common/apperr"
)

func TestLedger_GrantThenCheckAccessOnSubpath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "project", "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	l := NewLedger()
	require.NoError(t, l.Grant(filepath.Join(dir, "project"), LevelTrust, "s1"))

	file := filepath.Join(sub, "main.go")
	_, ok := l.CheckAccess(file)
	assert.True(t, ok)
}

func TestLedger_ValidateAccessFailsForUngrantedPath(t *testing.T) {
	l := NewLedger()
	_, err := l.ValidateAccess("/definitely/not/granted")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.PathNotGranted))
}

func TestLedger_GrantTwiceUpdatesLevelInPlace(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger()
	require.NoError(t, l.Grant(dir, LevelStrict, "s1"))
	require.NoError(t, l.Grant(dir, LevelTrust, "s1"))

	entry, ok := l.CheckAccess(dir)
	require.True(t, ok)
	assert.Equal(t, LevelTrust, entry.Level)
}

func TestLedger_ClearSessionPermissionsOnlyEvictsThatSession(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	l := NewLedger()
	require.NoError(t, l.Grant(dirA, LevelTrust, "s1"))
	require.NoError(t, l.Grant(dirB, LevelTrust, "s2"))

	l.ClearSessionPermissions("s1")

	_, okA := l.CheckAccess(dirA)
	_, okB := l.CheckAccess(dirB)
	assert.False(t, okA)
	assert.True(t, okB)
}

func TestRequiresConfirmation_Table(t *testing.T) {
	assert.False(t, RequiresConfirmation(LevelStrict, OpRead))
	assert.False(t, RequiresConfirmation(LevelStrict, OpList))
	assert.True(t, RequiresConfirmation(LevelStrict, OpWrite))
	assert.True(t, RequiresConfirmation(LevelStrict, OpExecute))

	assert.False(t, RequiresConfirmation(LevelAutoAcceptEdits, OpWrite))
	assert.True(t, RequiresConfirmation(LevelAutoAcceptEdits, OpDelete))

	assert.False(t, RequiresConfirmation(LevelTrust, OpDelete))
	assert.False(t, RequiresConfirmation(LevelTrust, OpExecute))
}

func TestLedger_RequiresConfirmationForUngrantedPathIsAlwaysTrue(t *testing.T) {
	l := NewLedger()
	assert.True(t, l.RequiresConfirmationForPath("/nope", OpRead))
}

func TestNormalize_ClimbsNonExistentTail(t *testing.T) {
	dir := t.TempDir()
	resolved, err := Normalize(filepath.Join(dir, "does", "not", "exist.txt"))
	require.NoError(t, err)
	assert.Contains(t, resolved, "does")
	assert.Contains(t, resolved, "exist.txt")
}

func TestNormalize_ResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(real, 0o755))
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	resolved, err := Normalize(filepath.Join(link, "file.txt"))
	require.NoError(t, err)
	assert.NotContains(t, resolved, link)
}

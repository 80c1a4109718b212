// Package sandbox implements the permission ledger, filesystem operations,
// terminal admission policy, and optional change-tracking baseline/diff
// mode the Delegate (internal/callback) consults before acting on behalf
// of an agent (spec.md §4.5).
package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grayridge/acphost/internal/common/apperr"
)

// SecurityLevel controls how much confirmation a path's operations
// require before the Delegate will perform them.
type SecurityLevel string

const (
	LevelStrict          SecurityLevel = "strict"
	LevelAutoAcceptEdits SecurityLevel = "auto-accept-edits"
	LevelTrust           SecurityLevel = "trust"
)

// Operation identifies the kind of filesystem or process action being
// checked against the requires_confirmation table.
type Operation string

const (
	OpRead    Operation = "read"
	OpList    Operation = "list"
	OpWrite   Operation = "write"
	OpMove    Operation = "move"
	OpDelete  Operation = "delete"
	OpExecute Operation = "execute"
)

// PermissionEntry is one granted path and the security level it was
// granted at.
type PermissionEntry struct {
	Path      string
	Level     SecurityLevel
	SessionID string
}

// Ledger tracks granted paths and answers access and confirmation
// queries against them. Grounded on the path-normalization helpers in
// internal/agents.detect.go, extended here with symlink resolution and
// ancestor-climbing as spec.md §4.5.1 requires.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*PermissionEntry
}

// NewLedger constructs an empty permission ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*PermissionEntry)}
}

// Normalize expands a leading ~, canonicalizes (resolving symlinks) the
// longest existing ancestor of p, and re-appends the non-existent tail,
// collapsing "." and ".." lexically.
func Normalize(p string) (string, error) {
	if p == "" {
		return "", apperr.New(apperr.InvalidPath, "empty path")
	}

	expanded := p
	if strings.HasPrefix(expanded, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperr.Wrap(apperr.InvalidPath, "cannot resolve home directory", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}
	expanded = filepath.Clean(filepath.FromSlash(expanded))
	if !filepath.IsAbs(expanded) {
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return "", apperr.Wrap(apperr.InvalidPath, "cannot resolve absolute path", err)
		}
		expanded = abs
	}

	existing, tail := climbToExistingAncestor(expanded)
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		// Ancestor vanished between the stat and the resolve; fall back
		// to the cleaned, unresolved path rather than failing the whole
		// normalization.
		resolved = existing
	}
	if tail == "" {
		return resolved, nil
	}
	return filepath.Join(resolved, tail), nil
}

// climbToExistingAncestor walks up from p until it finds a directory
// that exists, returning that ancestor and the remainder joined with
// "/" as tail.
func climbToExistingAncestor(p string) (existing string, tail string) {
	cur := p
	var tailParts []string
	for {
		if _, err := os.Stat(cur); err == nil {
			return cur, filepath.Join(tailParts...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached the filesystem root without finding anything that
			// exists; treat root as the existing ancestor.
			return parent, filepath.Join(tailParts...)
		}
		tailParts = append([]string{filepath.Base(cur)}, tailParts...)
		cur = parent
	}
}

// pathStartsWith reports whether p is child equal to or under g,
// compared component-wise rather than as raw strings.
func pathStartsWith(p, g string) bool {
	p = filepath.Clean(p)
	g = filepath.Clean(g)
	if p == g {
		return true
	}
	rel, err := filepath.Rel(g, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Grant records path as accessible at level for the given session.
// Granting the same normalized path twice updates its level in place.
func (l *Ledger) Grant(path string, level SecurityLevel, sessionID string) error {
	normalized, err := Normalize(path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[normalized] = &PermissionEntry{Path: normalized, Level: level, SessionID: sessionID}
	return nil
}

// Revoke removes a previously granted path.
func (l *Ledger) Revoke(path string) error {
	normalized, err := Normalize(path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, normalized)
	return nil
}

// ClearSessionPermissions evicts every entry granted under sessionID.
func (l *Ledger) ClearSessionPermissions(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.SessionID == sessionID {
			delete(l.entries, k)
		}
	}
}

// CheckAccess reports whether p falls under some granted entry, and if
// so the entry that granted it (the first match found; overlapping
// grants are not expected in practice).
func (l *Ledger) CheckAccess(p string) (*PermissionEntry, bool) {
	normalized, err := Normalize(p)
	if err != nil {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if pathStartsWith(normalized, e.Path) {
			return e, true
		}
	}
	return nil, false
}

// ValidateAccess returns a PathNotGranted error when p is not covered by
// any granted entry.
func (l *Ledger) ValidateAccess(p string) (*PermissionEntry, error) {
	entry, ok := l.CheckAccess(p)
	if !ok {
		return nil, apperr.New(apperr.PathNotGranted, "path not granted: "+p)
	}
	return entry, nil
}

// requiresConfirmation is the spec.md §4.5.1 table: which (level, op)
// pairs require the host to run an interactive confirmation flow before
// the Delegate proceeds.
var requiresConfirmation = map[SecurityLevel]map[Operation]bool{
	LevelStrict: {
		OpRead: false, OpList: false,
		OpWrite: true, OpMove: true, OpDelete: true, OpExecute: true,
	},
	LevelAutoAcceptEdits: {
		OpRead: false, OpList: false,
		OpWrite: false, OpMove: false, OpDelete: true, OpExecute: true,
	},
	LevelTrust: {
		OpRead: false, OpList: false,
		OpWrite: false, OpMove: false, OpDelete: false, OpExecute: false,
	},
}

// RequiresConfirmation reports whether op on a path granted at level
// needs interactive confirmation before the Delegate performs it.
func RequiresConfirmation(level SecurityLevel, op Operation) bool {
	ops, ok := requiresConfirmation[level]
	if !ok {
		return true
	}
	return ops[op]
}

// RequiresConfirmationForPath looks up the entry covering p and applies
// RequiresConfirmation with its granted level. An ungranted path always
// requires confirmation.
func (l *Ledger) RequiresConfirmationForPath(p string, op Operation) bool {
	entry, ok := l.CheckAccess(p)
	if !ok {
		return true
	}
	return RequiresConfirmation(entry.Level, op)
}

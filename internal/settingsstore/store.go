// Package settingsstore defines the persistent key/value collaborator
// the Delegate (internal/callback) injects for per-agent terminal policy
// and other durable settings (spec.md §4.4: "composes the Sandbox with
// the persistent settings store (injected)").
package settingsstore

import (
	"encoding/json"

	"github.com/grayridge/acphost/internal/sandbox"
)

// SettingsStore is the persistence boundary the Delegate depends on. It
// never touches the filesystem or network directly; concrete
// implementations (Memory, SQLite) decide how get/set are durable.
type SettingsStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

const terminalPolicyKeyPrefix = "terminal_policy:"

// TerminalPolicyKey returns the settings key a given agent id's terminal
// policy is stored under.
func TerminalPolicyKey(agentID string) string {
	return terminalPolicyKeyPrefix + agentID
}

// wirePolicy is the JSON-serializable shape of sandbox.TerminalPolicy.
type wirePolicy struct {
	Enabled             bool     `json:"enabled"`
	RequireConfirmation bool     `json:"requireConfirmation"`
	Whitelist           []string `json:"whitelist"`
	BlockedPatterns     []string `json:"blockedPatterns"`
}

// LoadTerminalPolicy reads and decodes the terminal policy for agentID,
// returning false if none has been saved yet.
func LoadTerminalPolicy(s SettingsStore, agentID string) (sandbox.TerminalPolicy, bool, error) {
	raw, ok, err := s.Get(TerminalPolicyKey(agentID))
	if err != nil || !ok {
		return sandbox.TerminalPolicy{}, false, err
	}

	var wire wirePolicy
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return sandbox.TerminalPolicy{}, false, err
	}
	return sandbox.TerminalPolicy{
		Enabled:             wire.Enabled,
		RequireConfirmation: wire.RequireConfirmation,
		Whitelist:           wire.Whitelist,
		BlockedPatterns:     wire.BlockedPatterns,
	}, true, nil
}

// SaveTerminalPolicy encodes and persists policy under agentID.
func SaveTerminalPolicy(s SettingsStore, agentID string, policy sandbox.TerminalPolicy) error {
	wire := wirePolicy{
		Enabled:             policy.Enabled,
		RequireConfirmation: policy.RequireConfirmation,
		Whitelist:           policy.Whitelist,
		BlockedPatterns:     policy.BlockedPatterns,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	return s.Set(TerminalPolicyKey(agentID), string(data))
}

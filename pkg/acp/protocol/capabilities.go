// Package protocol holds the ACP domain types layered on top of the raw
// jsonrpc envelope: initialize negotiation, content blocks, session update
// variants, plan entries, and tool-call shapes (spec.md §3, §4.2).
package protocol

import "encoding/json"

// ProtocolVersion is the ACP protocol version this host speaks.
// spec.md §6: a mismatch is logged and tolerated, never fatal.
const ProtocolVersion = 1

// ClientInfo identifies the host to the agent during initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// FSCapability describes which filesystem callback methods the host will
// service for the agent.
type FSCapability struct {
	Read  bool `json:"readTextFile,omitempty"`
	Write bool `json:"writeTextFile,omitempty"`
	List  bool `json:"listDirectory,omitempty"`
}

// TerminalCapability describes terminal callback support.
type TerminalCapability struct {
	Execute bool `json:"execute,omitempty"`
}

// ClientCapabilities is sent by the host on initialize.
type ClientCapabilities struct {
	FS          FSCapability       `json:"fs,omitempty"`
	Terminal    TerminalCapability `json:"terminal,omitempty"`
	LoadSession bool               `json:"loadSession,omitempty"`
}

// DefaultClientCapabilities mirrors spec.md §4.7: every adapter's connect()
// advertises the same fixed capability set.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		FS:          FSCapability{Read: true, Write: true, List: true},
		Terminal:    TerminalCapability{Execute: true},
		LoadSession: true,
	}
}

// AgentCapabilities is the canonical, coerced form of whatever capability
// shape the agent returned from initialize (spec.md §4.2: "the
// capabilities block may appear under either of two property names").
type AgentCapabilities struct {
	FSRead            bool     `json:"fsRead"`
	FSWrite           bool     `json:"fsWrite"`
	FSList            bool     `json:"fsList"`
	TerminalExecute   bool     `json:"terminalExecute"`
	LoadSession       bool     `json:"loadSession"`
	MCP               bool     `json:"mcp"`
	AvailableModes    []string `json:"availableModes,omitempty"`
	AvailableModels   []string `json:"availableModels,omitempty"`
}

// rawCapabilities models the two property names an agent may use for its
// capability block: "capabilities" (standard) or "agentCapabilities"
// (vendor-specific). Both are coerced into AgentCapabilities.
type rawCapabilities struct {
	Standard *rawCapabilityBlock `json:"capabilities,omitempty"`
	Vendor   *rawCapabilityBlock `json:"agentCapabilities,omitempty"`
}

type rawCapabilityBlock struct {
	LoadSession bool `json:"loadSession"`
	MCP         bool `json:"mcp"`
	FS          *struct {
		ReadTextFile  bool `json:"readTextFile"`
		WriteTextFile bool `json:"writeTextFile"`
		ListDirectory bool `json:"listDirectory"`
	} `json:"fs,omitempty"`
	Terminal *struct {
		Execute bool `json:"execute"`
	} `json:"terminal,omitempty"`
	Modes  []string `json:"modes,omitempty"`
	Models []string `json:"models,omitempty"`
}

// InitializeResult is the agent's response to the initialize call, with
// its capability block coerced into the canonical shape regardless of
// which property name the agent used.
type InitializeResult struct {
	ProtocolVersion int               `json:"protocolVersion"`
	Capabilities    AgentCapabilities `json:"-"`
}

// UnmarshalJSON implements the permissive capability coercion described in
// spec.md §4.2.
func (r *InitializeResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		ProtocolVersion int             `json:"protocolVersion"`
		Capabilities    json.RawMessage `json:"capabilities"`
		AgentCaps       json.RawMessage `json:"agentCapabilities"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.ProtocolVersion = wire.ProtocolVersion

	var raw rawCapabilities
	if len(wire.Capabilities) > 0 {
		var block rawCapabilityBlock
		if err := json.Unmarshal(wire.Capabilities, &block); err == nil {
			raw.Standard = &block
		}
	}
	if len(wire.AgentCaps) > 0 {
		var block rawCapabilityBlock
		if err := json.Unmarshal(wire.AgentCaps, &block); err == nil {
			raw.Vendor = &block
		}
	}

	block := raw.Standard
	if block == nil {
		block = raw.Vendor
	}
	if block == nil {
		r.Capabilities = AgentCapabilities{}
		return nil
	}

	caps := AgentCapabilities{
		LoadSession:     block.LoadSession,
		MCP:             block.MCP,
		AvailableModes:  block.Modes,
		AvailableModels: block.Models,
	}
	if block.FS != nil {
		caps.FSRead = block.FS.ReadTextFile
		caps.FSWrite = block.FS.WriteTextFile
		caps.FSList = block.FS.ListDirectory
	}
	if block.Terminal != nil {
		caps.TerminalExecute = block.Terminal.Execute
	}
	r.Capabilities = caps
	return nil
}

// InitializeParams is sent by the host to start a connection.
type InitializeParams struct {
	ProtocolVersion int                `json:"protocolVersion"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
	Capabilities    ClientCapabilities `json:"capabilities"`
}

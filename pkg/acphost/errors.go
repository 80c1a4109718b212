package acphost

import (
	"github.com/grayridge/acphost/internal/connection"
	"github.com/grayridge/acphost/pkg/acp/jsonrpc"
)

// respondErr converts a callback-layer error into the JSON-RPC error
// response sent back to the agent: a sandbox rejection surfaces as
// -32603 with the human-readable reason, never as a crashed connection
// (spec.md §7: "A sandbox rejection inside a callback returns a JSON-RPC
// error to the agent (-32603)").
func respondErr(conn *connection.Connection, id interface{}, err error) {
	_ = conn.Respond(id, nil, &jsonrpc.Error{
		Code:    jsonrpc.CodeInternalError,
		Message: err.Error(),
	})
}

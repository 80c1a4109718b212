// Package jsonrpc implements the JSON-RPC 2.0 envelope used by the Agent
// Client Protocol (ACP): request/response/notification framing, the
// standard error codes, and the discriminator that tells the three kinds
// of inbound message apart.
package jsonrpc

import "encoding/json"

// Request is an outbound (or agent-originated) JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a reply to a Request, carrying exactly one of Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification has a method but no id; no response is expected.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Standard JSON-RPC 2.0 error codes (spec.md §6).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Outbound (client -> agent) methods, spec.md §4.2.
const (
	MethodInitialize    = "initialize"
	MethodSessionNew    = "session/new"
	MethodSessionLoad   = "session/load"
	MethodSessionPrompt = "session/prompt"
	MethodSessionCancel = "session/cancel"
	MethodSessionMode   = "session/setMode"
	MethodSessionModel  = "session/setModel"
	MethodSessionConfig = "session/setConfig"
	MethodSessionList   = "session/list"
)

// Inbound (agent -> client) notifications and requests, spec.md §4.2.
const (
	NotificationSessionUpdate = "session/update"
	NotificationProgress      = "$/progress"

	MethodFSReadTextFile    = "fs/read_text_file"
	MethodFSWriteFile       = "fs/write_file"
	MethodFSWriteTextFile   = "fs/write_text_file" // alias of MethodFSWriteFile
	MethodFSListDirectory   = "fs/list_directory"
	MethodFSDeleteFile      = "fs/delete_file"
	MethodFSMoveFile        = "fs/move_file"
	MethodFSCreateDirectory = "fs/create_directory"
	MethodTerminalExecute   = "terminal/execute"
	MethodTerminalCreate    = "terminal/create" // alias of MethodTerminalExecute
)

// CanonicalMethod collapses an inbound method alias to its canonical form
// (spec.md §4.2: fs/write_text_file aliases fs/write_file, terminal/create
// aliases terminal/execute).
func CanonicalMethod(method string) string {
	switch method {
	case MethodFSWriteTextFile:
		return MethodFSWriteFile
	case MethodTerminalCreate:
		return MethodTerminalExecute
	default:
		return method
	}
}

// Kind discriminates an inbound JSON-RPC line into one of three shapes.
type Kind int

const (
	// KindUnknown means the envelope matched none of the three shapes.
	KindUnknown Kind = iota
	KindResponse
	KindRequest
	KindNotification
)

// envelope is the superset of fields used to structurally discriminate an
// inbound line without committing to a shape up front.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
	Params json.RawMessage `json:"params"`
}

// Peek parses the minimal structural fields needed to classify a line.
// It never errors on extra/missing fields; json.Unmarshal failures are the
// caller's concern (malformed JSON never reaches Peek in the tolerant
// framer — see internal/transport).
func Peek(line []byte) (kind Kind, id interface{}, method string, result json.RawMessage, rpcErr *Error, params json.RawMessage, err error) {
	var env envelope
	if err = json.Unmarshal(line, &env); err != nil {
		return KindUnknown, nil, "", nil, nil, nil, err
	}

	hasID := len(env.ID) > 0 && string(env.ID) != "null"
	hasMethod := env.Method != ""
	hasResult := len(env.Result) > 0
	hasError := env.Error != nil

	switch {
	case hasID && !hasMethod && (hasResult || hasError):
		id = normalizeID(env.ID)
		return KindResponse, id, "", env.Result, env.Error, nil, nil
	case hasID && hasMethod:
		id = normalizeID(env.ID)
		return KindRequest, id, env.Method, nil, nil, env.Params, nil
	case hasMethod && !hasID:
		return KindNotification, nil, env.Method, nil, nil, env.Params, nil
	default:
		return KindUnknown, nil, "", nil, nil, nil, nil
	}
}

// normalizeID decodes a raw JSON id into either an int64 or a string so
// map lookups are stable regardless of whether the peer sent a number or
// a quoted string.
func normalizeID(raw json.RawMessage) interface{} {
	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt
	}
	var asFloat float64
	if err := json.Unmarshal(raw, &asFloat); err == nil {
		return int64(asFloat)
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return string(raw)
}

// NewRequest builds a Request envelope, marshaling params.
func NewRequest(id uint64, method string, params interface{}) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a Notification envelope, marshaling params.
func NewNotification(method string, params interface{}) (*Notification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Notification{JSONRPC: "2.0", Method: method, Params: raw}, nil
}

// NewResponse builds a success or error Response for an inbound request id.
func NewResponse(id interface{}, result interface{}, rpcErr *Error) (*Response, error) {
	resp := &Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil {
		raw, err := marshalParams(result)
		if err != nil {
			return nil, err
		}
		resp.Result = raw
	}
	return resp, nil
}

func marshalParams(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

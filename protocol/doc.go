// Package protocol defines the JSON-RPC 2.0 message model used by MCP clients.
//
// The package performs no I/O. It encodes and decodes the three wire shapes
// and the MCP payloads exchanged during a session.
//
// # Messages
//
// Every wire message is one of:
//
//	type Request struct {
//	    JSONRPC string          `json:"jsonrpc"`
//	    ID      ID              `json:"id"`
//	    Method  string          `json:"method"`
//	    Params  json.RawMessage `json:"params,omitempty"`
//	}
//
//	type Response struct {
//	    JSONRPC string          `json:"jsonrpc"`
//	    ID      ID              `json:"id"`
//	    Result  json.RawMessage `json:"result,omitempty"`
//	    Error   *Error          `json:"error,omitempty"`
//	}
//
//	type Notification struct {
//	    JSONRPC string          `json:"jsonrpc"`
//	    Method  string          `json:"method"`
//	    Params  json.RawMessage `json:"params,omitempty"`
//	}
//
// Parse tells them apart by structure: "result" or "error" means a
// Response, a bare "id" means a Request, and no "id" means a Notification.
//
//	msg, err := protocol.Parse(line)
//	switch m := msg.(type) {
//	case *protocol.Response:
//	    ...
//	}
//
// # Identifiers
//
// ID keeps string and numeric ids distinct, so a response to request "7"
// never matches a waiter for request 7:
//
//	protocol.StringID("7") != protocol.IntID(7)
//
// # Error Codes
//
// Standard JSON-RPC 2.0 error codes are defined as constants:
//
//	CodeParseError     = -32700  // Invalid JSON
//	CodeInvalidRequest = -32600  // Invalid Request object
//	CodeMethodNotFound = -32601  // Method not found
//	CodeInvalidParams  = -32602  // Invalid method parameters
//	CodeInternalError  = -32603  // Internal server error
//
// Codes from -32099 to -32000 are implementation-defined server errors.
package protocol

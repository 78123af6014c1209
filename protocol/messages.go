package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// Message is any one wire message: *Request, *Response or *Notification.
type Message interface {
	jsonrpcMessage()
}

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest creates a request. Params are marshalled immediately; nil
// params are omitted from the wire form.
func NewRequest(id ID, method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  raw,
	}, nil
}

// DecodeParams unmarshals the params of req into v. Absent params leave v
// untouched.
func DecodeParams(req *Request, v any) error {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return fmt.Errorf("decode %s params: %w", req.Method, err)
	}
	return nil
}

// Notification represents a JSON-RPC 2.0 notification (no ID, no response expected).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a notification.
func NewNotification(method string, params any) (*Notification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result or
// Error is meaningful: a non-nil Error marks a failure and Result is then
// ignored.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse creates a successful response.
func NewResponse(id ID, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id ID, err *Error) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}

// IsError reports whether the response carries an error object.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Err returns the response's error object as an error, or nil on success.
func (r *Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// Decode unmarshals the result into v. It returns the error object
// unchanged when the response is a failure.
func (r *Response) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if len(r.Result) == 0 {
		return errors.New("response has no result")
	}
	return json.Unmarshal(r.Result, v)
}

// MarshalJSON emits exactly one of "result" or "error".
func (r Response) MarshalJSON() ([]byte, error) {
	w := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      ID              `json:"id"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *Error          `json:"error,omitempty"`
	}{
		JSONRPC: r.JSONRPC,
		ID:      r.ID,
	}
	if r.Error != nil {
		w.Error = r.Error
	} else {
		w.Result = r.Result
		if len(w.Result) == 0 {
			w.Result = json.RawMessage("null")
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a response and enforces that exactly one outcome
// is present.
func (r *Response) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	resp, err := decodeResponse(fields)
	if err != nil {
		return err
	}
	*r = *resp
	return nil
}

func (*Request) jsonrpcMessage()      {}
func (*Response) jsonrpcMessage()     {}
func (*Notification) jsonrpcMessage() {}

// Parse decodes one wire message and discriminates its shape: a payload
// carrying "result" or "error" is a Response, one carrying only "id" is a
// Request, and one without "id" is a Notification. Malformed input is
// reported as a *ParseError.
func Parse(data []byte) (Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, &ParseError{Reason: "not a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}

	var version string
	if raw, ok := fields["jsonrpc"]; !ok || json.Unmarshal(raw, &version) != nil || version != JSONRPCVersion {
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported jsonrpc version %q", version)}
	}

	_, hasID := fields["id"]
	_, hasResult := fields["result"]
	_, hasError := fields["error"]

	switch {
	case hasResult || hasError:
		resp, err := decodeResponse(fields)
		if err != nil {
			return nil, &ParseError{Reason: "invalid response", Err: err}
		}
		return resp, nil
	case hasID:
		req, err := decodeRequest(fields)
		if err != nil {
			return nil, &ParseError{Reason: "invalid request", Err: err}
		}
		return req, nil
	default:
		method, params, err := decodeCall(fields)
		if err != nil {
			return nil, &ParseError{Reason: "invalid notification", Err: err}
		}
		return &Notification{JSONRPC: version, Method: method, Params: params}, nil
	}
}

func decodeRequest(fields map[string]json.RawMessage) (*Request, error) {
	var id ID
	if err := json.Unmarshal(fields["id"], &id); err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, errors.New("request id must not be null")
	}
	method, params, err := decodeCall(fields)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: params}, nil
}

func decodeCall(fields map[string]json.RawMessage) (string, json.RawMessage, error) {
	var method string
	raw, ok := fields["method"]
	if !ok {
		return "", nil, errors.New("missing method")
	}
	if err := json.Unmarshal(raw, &method); err != nil {
		return "", nil, fmt.Errorf("method: %w", err)
	}
	if method == "" {
		return "", nil, errors.New("empty method")
	}
	params := fields["params"]
	if isNull(params) {
		params = nil
	}
	return method, params, nil
}

func decodeResponse(fields map[string]json.RawMessage) (*Response, error) {
	resp := &Response{}
	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &resp.JSONRPC); err != nil {
			return nil, fmt.Errorf("jsonrpc: %w", err)
		}
	}

	rawID, ok := fields["id"]
	if !ok {
		return nil, errors.New("missing id")
	}
	if err := json.Unmarshal(rawID, &resp.ID); err != nil {
		return nil, err
	}

	result, hasResult := fields["result"]
	rawErr, hasError := fields["error"]
	if hasError && isNull(rawErr) {
		hasError = false
	}

	switch {
	case hasError && hasResult && !isNull(result):
		return nil, errors.New("response carries both result and error")
	case hasError:
		var e Error
		if err := json.Unmarshal(rawErr, &e); err != nil {
			return nil, fmt.Errorf("error object: %w", err)
		}
		resp.Error = &e
	case hasResult:
		resp.Result = result
	default:
		return nil, errors.New("missing result or error")
	}
	return resp, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	return raw, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// ABOUTME: JSON-RPC 2.0 envelopes for clients that speak to /mcp without the SDK
// ABOUTME: Encodes tools/call requests and decodes JSON or SSE-framed responses

package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  any             `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	if name := CodeName(e.Code); name != "" {
		return fmt.Sprintf("json-rpc error %d (%s): %s", e.Code, name, e.Message)
	}
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// CodeName returns the short name of a standard JSON-RPC error code, or ""
// for application-defined codes.
func CodeName(code int) string {
	switch code {
	case JSONRPCParseError:
		return "parse error"
	case JSONRPCInvalidRequest:
		return "invalid request"
	case JSONRPCMethodNotFound:
		return "method not found"
	case JSONRPCInvalidParams:
		return "invalid params"
	case JSONRPCInternalError:
		return "internal error"
	}
	return ""
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// AcceptHeader is what Streamable HTTP requires on every POST.
const AcceptHeader = "application/json, text/event-stream"

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents content in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text joins all text content blocks.
func (r *CallToolResult) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ErrEmptyResponse is returned when a response body holds no JSON-RPC message.
var ErrEmptyResponse = errors.New("empty JSON-RPC response")

// NewToolCall encodes a tools/call request.
func NewToolCall(id int, name string, args any) ([]byte, error) {
	return json.Marshal(JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprint(id)),
		Method:  "tools/call",
		Params:  CallToolParams{Name: name, Arguments: args},
	})
}

// DecodeResponse parses a response body. SSE bodies use the first data line
// carrying a message; anything else is decoded as plain JSON.
func DecodeResponse(body []byte, contentType string) (*JSONRPCResponse, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "text/event-stream" {
		var err error
		body, err = firstEventData(body)
		if err != nil {
			return nil, err
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyResponse
	}

	var resp JSONRPCResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding JSON-RPC response: %w", err)
	}
	return &resp, nil
}

// ToolResult decodes the result of a tools/call response. A JSON-RPC error is
// returned as *JSONRPCError.
func (r *JSONRPCResponse) ToolResult() (*CallToolResult, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	var out CallToolResult
	if err := json.Unmarshal(r.Result, &out); err != nil {
		return nil, fmt.Errorf("decoding tool result: %w", err)
	}
	return &out, nil
}

func firstEventData(body []byte) ([]byte, error) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), MaxRequestBodySize)
	var data []byte
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		case line == "" && len(data) > 0:
			return data, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}
	return data, nil
}

// ABOUTME: Package mcp binds the capability registry to the MCP protocol.
// ABOUTME: Serves tools, resources and prompts over Streamable HTTP with JSON responses.

// Package mcp exposes a finalized registry through the official MCP Go SDK.
//
// The protocol framing, session handling and transport are the SDK's. This
// package owns the translation between registry handlers and SDK requests:
//
//   - tool arguments are validated against the declared JSON schema before the
//     handler runs
//   - user-facing handler errors become tool results with IsError set and the
//     text prefixed by "Error: "
//   - any other handler error or panic is logged with its stack and reported to
//     the caller as a generic internal error
//
// In stateless mode (the default) no session state is kept between requests,
// so any replica behind a load balancer can answer any request.
//
// The JSON-RPC envelope types in jsonrpc.go are for raw HTTP clients such as
// the load tester, which talk to the endpoint without the SDK.
package mcp

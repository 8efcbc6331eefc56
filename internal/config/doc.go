// Package config loads the server's hierarchical settings.
//
// # Overview
//
// Settings come from a YAML file (or TOML when the path ends in .toml) and are
// exposed as an immutable Tree addressed by dotted paths such as "server.port".
// A Provider owns the current Tree and swaps it atomically on Reload.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the --config flag
//  2. Path from MCP_CONFIG environment variable
//  3. ./configs/settings.yaml
//
// # Environment Variable Expansion
//
// String values can reference environment variables:
//
//	security:
//	  authentication:
//	    bearer_token: "${AUTH_TOKEN}"
//
// Placeholders are resolved once, when the file is loaded. A placeholder whose
// variable is unset stays in the value verbatim and a warning is logged.
//
// # Environment Overrides
//
//   - AUTH_ENABLED (true/1/yes, false/0/no) overrides security.authentication.enabled
//   - AUTH_TOKEN overrides security.authentication.bearer_token
//   - MCP_PORT overrides server.port
//   - STATELESS_HTTP selects stateless or stateful protocol sessions (default stateless)
//   - AUTO_DISCOVER toggles the plugin directory scan (default on)
//
// # Usage
//
//	p, err := config.NewProvider(config.ResolvePath(flagPath), logger)
//	if err != nil {
//	    return err
//	}
//	port := p.Port()
//	name := p.GetString("mcp.name", "template-mcp")
package config

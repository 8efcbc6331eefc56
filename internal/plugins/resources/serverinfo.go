// ABOUTME: info://server resource describing the running server
// ABOUTME: Values are read from the live configuration on every request

package resources

import (
	"context"
	"fmt"

	"github.com/2389/mcp-scaffold/internal/discovery"
	"github.com/2389/mcp-scaffold/internal/registry"
)

// ServerInfoURI is the URI the resource is served under.
const ServerInfoURI = "info://server"

// Info is what the resource needs to know about the server.
type Info interface {
	Name() string
	Version() string
	Port() int
	AuthEnabled() bool
}

// ServerInfoSource registers the info://server resource backed by info.
func ServerInfoSource(info Info) discovery.Source {
	return discovery.NewSource("builtin:resources/server_info", registry.KindResource, func(b *registry.Builder) error {
		return b.Register(&registry.Capability{
			Name:        "server_info",
			Kind:        registry.KindResource,
			Description: "Get server information",
			Source:      "builtin:resources/server_info",
			URI:         ServerInfoURI,
			MIMEType:    "text/plain",
			Resource: func(ctx context.Context, uri string) (string, error) {
				return ServerInfo(info), nil
			},
		})
	})
}

// ServerInfo renders the plain-text description.
func ServerInfo(info Info) string {
	auth := "Disabled"
	if info.AuthEnabled() {
		auth = "Enabled"
	}
	return fmt.Sprintf(`Server Information
==================
Name: %s
Version: %s
Port: %d
Authentication: %s

Status: Running
`, info.Name(), info.Version(), info.Port(), auth)
}

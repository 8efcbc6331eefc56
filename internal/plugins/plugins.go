// ABOUTME: Compiled-in plugin sources registered on every startup
// ABOUTME: Directory manifests are discovered alongside these

package plugins

import (
	"github.com/2389/mcp-scaffold/internal/discovery"
	"github.com/2389/mcp-scaffold/internal/plugins/prompts"
	"github.com/2389/mcp-scaffold/internal/plugins/resources"
	"github.com/2389/mcp-scaffold/internal/plugins/tools"
)

// Builtins returns the static plugin list for every kind.
func Builtins(info resources.Info) []discovery.Source {
	return []discovery.Source{
		tools.EchoSource,
		resources.ServerInfoSource(info),
		prompts.CodeReviewSource,
	}
}

// ABOUTME: Human-readable /_info page listing registered capabilities
// ABOUTME: Built as markdown and rendered to HTML with goldmark

package server

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/mcp-scaffold/internal/registry"
)

var infoMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// cell escapes characters that would break a markdown table cell.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// InfoMarkdown describes the server and its capabilities.
func (s *Server) InfoMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.cfg.Name())
	if desc := s.cfg.GetString("mcp.description", ""); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}
	auth := "disabled"
	if s.cfg.AuthEnabled() {
		auth = "enabled"
	}
	fmt.Fprintf(&b, "- Version: `%s`\n- Host: `%s`\n- Mode: %s\n- Authentication: %s\n\n",
		s.cfg.Version(), s.hostname, s.mode(), auth)

	fmt.Fprintf(&b, "## Tools (%d)\n\n", len(s.registry.List(registry.KindTool)))
	b.WriteString("| Name | Description |\n|---|---|\n")
	for _, c := range s.registry.List(registry.KindTool) {
		fmt.Fprintf(&b, "| `%s` | %s |\n", c.Name, cell(c.Description))
	}

	fmt.Fprintf(&b, "\n## Resources (%d)\n\n", len(s.registry.List(registry.KindResource)))
	b.WriteString("| Name | URI | Type |\n|---|---|---|\n")
	for _, c := range s.registry.List(registry.KindResource) {
		fmt.Fprintf(&b, "| `%s` | `%s` | %s |\n", c.Name, c.URI, cell(c.MIMEType))
	}

	fmt.Fprintf(&b, "\n## Prompts (%d)\n\n", len(s.registry.List(registry.KindPrompt)))
	b.WriteString("| Name | Arguments | Description |\n|---|---|---|\n")
	for _, c := range s.registry.List(registry.KindPrompt) {
		args := make([]string, 0, len(c.Arguments))
		for _, a := range c.Arguments {
			args = append(args, a.Name)
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", c.Name, cell(strings.Join(args, ", ")), cell(c.Description))
	}
	return b.String()
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	if err := infoMarkdown.Convert([]byte(s.InfoMarkdown()), &body); err != nil {
		s.logger.Error("rendering info page", "error", err)
		http.Error(w, "failed to render info page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n%s</body></html>\n",
		html.EscapeString(s.cfg.Name()), body.String())
}

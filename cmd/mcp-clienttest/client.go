// ABOUTME: Check suite run by mcp-clienttest against one MCP endpoint
// ABOUTME: Each check prints a coloured pass/fail line and feeds a Report

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const clientName = "mcp-clienttest"

// Report counts check outcomes.
type Report struct {
	Passed int
	Failed int
}

// Client runs checks against URL, authenticating with Token when set.
type Client struct {
	URL   string
	Token string
	Out   io.Writer

	// HTTPClient overrides the transport's client, mainly for tests.
	HTTPClient *http.Client
}

type check struct {
	name string
	run  func(ctx context.Context, s *sdk.ClientSession) (string, error)
}

// Connect opens a fresh protocol session.
func (c *Client) Connect(ctx context.Context) (*sdk.ClientSession, error) {
	base := c.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	hc := base
	if c.Token != "" {
		rt := base.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		hc = &http.Client{Timeout: base.Timeout, Transport: bearerTransport{token: c.Token, base: rt}}
	}

	client := sdk.NewClient(&sdk.Implementation{Name: clientName, Version: "1.0.0"}, nil)
	return client.Connect(ctx, &sdk.StreamableClientTransport{Endpoint: c.URL, HTTPClient: hc}, nil)
}

// Suite connects once and runs every check in order.
func (c *Client) Suite(ctx context.Context) Report {
	var r Report
	session, err := c.Connect(ctx)
	if err != nil {
		c.result(&r, "connect", "", err)
		return r
	}
	defer session.Close()

	c.result(&r, "connect", serverInfo(session), nil)
	for _, ch := range checks() {
		detail, err := ch.run(ctx, session)
		c.result(&r, ch.name, detail, err)
	}
	return r
}

// Rapid opens n independent sessions in sequence and calls echo on each.
func (c *Client) Rapid(ctx context.Context, n int) Report {
	var r Report
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("connection %d", i)
		session, err := c.Connect(ctx)
		if err != nil {
			c.result(&r, name, "", err)
			continue
		}
		text, err := callEcho(ctx, session, map[string]any{"message": fmt.Sprintf("rapid %d", i)})
		session.Close()
		c.result(&r, name, text, err)
	}
	return r
}

func (c *Client) result(r *Report, name, detail string, err error) {
	if err != nil {
		r.Failed++
		color.New(color.FgRed).Fprintf(c.Out, "  ✗ %s: %v\n", name, err)
		return
	}
	r.Passed++
	color.New(color.FgGreen).Fprintf(c.Out, "  ✓ %s", name)
	if detail != "" {
		fmt.Fprintf(c.Out, ": %s", detail)
	}
	fmt.Fprintln(c.Out)
}

func checks() []check {
	return []check{
		{"list tools", func(ctx context.Context, s *sdk.ClientSession) (string, error) {
			res, err := s.ListTools(ctx, nil)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(res.Tools))
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			return requireName(names, "echo")
		}},
		echoCheck("echo", map[string]any{"message": "Hello from MCP Client!"}, "Hello from MCP Client!"),
		echoCheck("echo repeat 3", map[string]any{"message": "Hi Avi", "repeat": 3}, "Hi Avi\nHi Avi\nHi Avi"),
		echoCheck("echo emoji repeat 10", map[string]any{"message": "🚀", "repeat": 10}, strings.TrimSuffix(strings.Repeat("🚀\n", 10), "\n")),
		{"echo repeat 15 is rejected", func(ctx context.Context, s *sdk.ClientSession) (string, error) {
			res, err := s.CallTool(ctx, &sdk.CallToolParams{
				Name:      "echo",
				Arguments: map[string]any{"message": "test", "repeat": 15},
			})
			if err != nil {
				return "", err
			}
			text := contentText(res.Content)
			if !res.IsError {
				return "", fmt.Errorf("expected an error result, got %q", text)
			}
			return text, nil
		}},
		{"list resources", func(ctx context.Context, s *sdk.ClientSession) (string, error) {
			res, err := s.ListResources(ctx, nil)
			if err != nil {
				return "", err
			}
			uris := make([]string, 0, len(res.Resources))
			for _, r := range res.Resources {
				uris = append(uris, r.URI)
			}
			return requireName(uris, "info://server")
		}},
		{"read info://server", func(ctx context.Context, s *sdk.ClientSession) (string, error) {
			res, err := s.ReadResource(ctx, &sdk.ReadResourceParams{URI: "info://server"})
			if err != nil {
				return "", err
			}
			if len(res.Contents) == 0 || res.Contents[0].Text == "" {
				return "", errors.New("empty resource contents")
			}
			return firstLine(res.Contents[0].Text), nil
		}},
		{"list prompts", func(ctx context.Context, s *sdk.ClientSession) (string, error) {
			res, err := s.ListPrompts(ctx, nil)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(res.Prompts))
			for _, p := range res.Prompts {
				names = append(names, p.Name)
			}
			return requireName(names, "code_review")
		}},
		{"get code_review", func(ctx context.Context, s *sdk.ClientSession) (string, error) {
			res, err := s.GetPrompt(ctx, &sdk.GetPromptParams{
				Name:      "code_review",
				Arguments: map[string]string{"language": "go"},
			})
			if err != nil {
				return "", err
			}
			if len(res.Messages) == 0 {
				return "", errors.New("prompt returned no messages")
			}
			text := contentText([]sdk.Content{res.Messages[0].Content})
			if !strings.Contains(text, "Go") {
				return "", fmt.Errorf("prompt does not mention the language: %q", firstLine(text))
			}
			return firstLine(text), nil
		}},
	}
}

func echoCheck(name string, args map[string]any, want string) check {
	return check{name, func(ctx context.Context, s *sdk.ClientSession) (string, error) {
		got, err := callEcho(ctx, s, args)
		if err != nil {
			return "", err
		}
		if got != want {
			return "", fmt.Errorf("got %q, want %q", got, want)
		}
		return got, nil
	}}
}

func callEcho(ctx context.Context, s *sdk.ClientSession, args map[string]any) (string, error) {
	res, err := s.CallTool(ctx, &sdk.CallToolParams{Name: "echo", Arguments: args})
	if err != nil {
		return "", err
	}
	text := contentText(res.Content)
	if res.IsError {
		return "", errors.New(text)
	}
	return text, nil
}

func serverInfo(s *sdk.ClientSession) string {
	ir := s.InitializeResult()
	if ir == nil || ir.ServerInfo == nil {
		return ""
	}
	return ir.ServerInfo.Name + " " + ir.ServerInfo.Version
}

func contentText(content []sdk.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*sdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func requireName(names []string, want string) (string, error) {
	for _, n := range names {
		if n == want {
			return strings.Join(names, ", "), nil
		}
	}
	return "", fmt.Errorf("%s not found in [%s]", want, strings.Join(names, ", "))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}

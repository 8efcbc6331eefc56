// ABOUTME: Smoke-test client that drives a running MCP server through the Go SDK
// ABOUTME: Lists capabilities, exercises echo, reads info://server and gets code_review

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
)

// Options are the command-line flags.
type Options struct {
	URL     string  `short:"u" long:"url" default:"http://localhost:8150/mcp" description:"MCP endpoint URL"`
	Token   string  `short:"t" long:"token" env:"AUTH_TOKEN" description:"bearer token for authenticated servers"`
	Rapid   int     `long:"rapid" description:"open N fresh connections and call echo on each instead of the full suite"`
	Timeout float64 `long:"timeout" default:"30" description:"overall timeout in seconds"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if opts.Rapid < 0 {
		fmt.Fprintln(os.Stderr, "Error: --rapid cannot be negative")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(opts.Timeout*float64(time.Second)))
	defer cancelTimeout()

	c := &Client{URL: opts.URL, Token: opts.Token, Out: os.Stdout}

	var report Report
	if opts.Rapid > 0 {
		color.New(color.FgCyan, color.Bold).Printf("Rapid mode: %d connections to %s\n\n", opts.Rapid, opts.URL)
		report = c.Rapid(ctx, opts.Rapid)
	} else {
		color.New(color.FgCyan, color.Bold).Printf("Testing MCP server at %s\n\n", opts.URL)
		report = c.Suite(ctx)
	}

	fmt.Println()
	if report.Failed > 0 {
		color.New(color.FgRed, color.Bold).Printf("FAIL: %d passed, %d failed\n", report.Passed, report.Failed)
		os.Exit(1)
	}
	color.New(color.FgGreen, color.Bold).Printf("PASS: %d checks\n", report.Passed)
}

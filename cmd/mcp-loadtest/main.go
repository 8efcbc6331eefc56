// ABOUTME: Concurrent load tester for a (possibly replicated) MCP server
// ABOUTME: Reports success rate, latency and which replicas served the requests

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/2389/mcp-scaffold/internal/logging"
)

// Options are the command-line flags.
type Options struct {
	URL        string  `short:"u" long:"url" default:"http://localhost:8150/mcp" description:"MCP endpoint URL"`
	Requests   int     `short:"n" long:"requests" default:"50" description:"total number of requests"`
	Concurrent int     `short:"c" long:"concurrent" default:"10" description:"requests sent together in each batch"`
	Delay      float64 `short:"d" long:"delay" default:"0.05" description:"seconds to wait between batches"`
	Token      string  `short:"t" long:"token" env:"AUTH_TOKEN" description:"bearer token for authenticated servers"`
	Tool       string  `long:"tool" default:"echo" description:"tool to call"`
	Timeout    float64 `long:"timeout" default:"30" description:"per-request timeout in seconds"`
	Verbose    bool    `short:"v" long:"verbose" description:"log every request"`
}

// MinSuccessRate is the pass threshold for the exit status.
const MinSuccessRate = 0.95

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	level := "info"
	if opts.Verbose {
		level = "debug"
	}
	logger, _ := logging.New(logging.Settings{Level: level, Format: "text"}, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := opts.check(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Println("MCP load test")
	fmt.Printf("  target:     %s\n  requests:   %d\n  concurrent: %d\n\n", opts.URL, opts.Requests, opts.Concurrent)

	lt := &LoadTest{
		Options: opts,
		Client:  &http.Client{Timeout: time.Duration(opts.Timeout * float64(time.Second))},
		Logger:  logger,
	}
	results, err := lt.Run(ctx)
	if err != nil {
		logger.Error("load test aborted", "error", err)
	}

	summary := Summarize(results)
	summary.Print(os.Stdout)

	if summary.Total == 0 || summary.SuccessRate() < MinSuccessRate {
		color.New(color.FgRed, color.Bold).Printf("\nFAIL: success rate %.1f%% below %.0f%%\n",
			summary.SuccessRate()*100, MinSuccessRate*100)
		os.Exit(1)
	}
	color.New(color.FgGreen, color.Bold).Printf("\nPASS: success rate %.1f%%\n", summary.SuccessRate()*100)
}

func (o Options) check() error {
	if o.Requests < 1 {
		return errors.New("--requests must be at least 1")
	}
	if o.Concurrent < 1 {
		return errors.New("--concurrent must be at least 1")
	}
	if o.Delay < 0 {
		return errors.New("--delay cannot be negative")
	}
	return nil
}

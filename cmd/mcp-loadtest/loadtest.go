// ABOUTME: Batch runner and result statistics for the load tester
// ABOUTME: Each batch is an errgroup of raw JSON-RPC tools/call requests

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/mcp-scaffold/internal/mcp"
)

// Result is the outcome of one request.
type Result struct {
	ID       int
	OK       bool
	ServedBy string
	Latency  time.Duration
	Err      string
}

// LoadTest sends Options.Requests calls in batches of Options.Concurrent.
type LoadTest struct {
	Options Options
	Client  *http.Client
	Logger  *slog.Logger
}

// Run executes every batch. It stops early only when ctx is canceled and
// returns the results gathered so far.
func (lt *LoadTest) Run(ctx context.Context) ([]Result, error) {
	opts := lt.Options
	results := make([]Result, 0, opts.Requests)
	delay := time.Duration(opts.Delay * float64(time.Second))

	lt.Logger.Info("starting load test", "requests", opts.Requests, "concurrent", opts.Concurrent, "url", opts.URL)

	for next := 0; next < opts.Requests; {
		size := min(opts.Concurrent, opts.Requests-next)
		batch := make([]Result, size)

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			id := next + i
			g.Go(func() error {
				batch[i] = lt.call(gctx, id)
				// Failed requests are recorded in the Result and never stop
				// their siblings; only cancellation of ctx ends the batch.
				return ctx.Err()
			})
		}
		err := g.Wait()
		results = append(results, batch...)
		next += size

		ok := 0
		for _, r := range batch {
			if r.OK {
				ok++
			}
		}
		lt.Logger.Info("batch complete",
			"completed", len(results),
			"total", opts.Requests,
			"batch_ok", ok,
			"batch_size", size,
		)

		if err != nil {
			return results, err
		}
		if next < opts.Requests && delay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return results, nil
}

func (lt *LoadTest) call(ctx context.Context, id int) Result {
	res := Result{ID: id}
	payload, err := mcp.NewToolCall(id, lt.Options.Tool, map[string]any{
		"message": fmt.Sprintf("Concurrent request #%d", id),
		"repeat":  1,
	})
	if err != nil {
		res.Err = err.Error()
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lt.Options.URL, bytes.NewReader(payload))
	if err != nil {
		res.Err = err.Error()
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", mcp.AcceptHeader)
	if lt.Options.Token != "" {
		req.Header.Set("Authorization", "Bearer "+lt.Options.Token)
	}

	start := time.Now()
	resp, err := lt.Client.Do(req)
	if err != nil {
		res.Latency = time.Since(start)
		res.Err = err.Error()
		lt.Logger.Debug("request failed", "id", id, "error", err)
		return res
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	res.Latency = time.Since(start)
	res.ServedBy = resp.Header.Get("X-Served-By")
	if err != nil {
		res.Err = err.Error()
		return res
	}

	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 100))
		lt.Logger.Debug("request rejected", "id", id, "status", resp.StatusCode)
		return res
	}
	decoded, err := mcp.DecodeResponse(body, resp.Header.Get("Content-Type"))
	if err == nil {
		_, err = decoded.ToolResult()
	}
	if err != nil {
		res.Err = err.Error()
		return res
	}

	res.OK = true
	lt.Logger.Debug("request ok", "id", id, "served_by", res.ServedBy, "latency", res.Latency)
	return res
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Summary aggregates a run.
type Summary struct {
	Total     int
	Succeeded int
	Min       time.Duration
	Max       time.Duration
	Avg       time.Duration
	ByHost    map[string]int
	Errors    map[string]int
}

// unknownHost labels responses without an X-Served-By header.
const unknownHost = "unknown"

// Summarize computes statistics over results.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:  len(results),
		ByHost: map[string]int{},
		Errors: map[string]int{},
	}
	var sum time.Duration
	for i, r := range results {
		if i == 0 || r.Latency < s.Min {
			s.Min = r.Latency
		}
		if r.Latency > s.Max {
			s.Max = r.Latency
		}
		sum += r.Latency
		if !r.OK {
			s.Errors[r.Err]++
			continue
		}
		s.Succeeded++
		host := r.ServedBy
		if host == "" {
			host = unknownHost
		}
		s.ByHost[host]++
	}
	if s.Total > 0 {
		s.Avg = sum / time.Duration(s.Total)
	}
	return s
}

// SuccessRate is Succeeded/Total, or 0 for an empty run.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// Hosts returns replica names by descending request count.
func (s Summary) Hosts() []string {
	hosts := make([]string, 0, len(s.ByHost))
	for h := range s.ByHost {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if s.ByHost[hosts[i]] != s.ByHost[hosts[j]] {
			return s.ByHost[hosts[i]] > s.ByHost[hosts[j]]
		}
		return hosts[i] < hosts[j]
	})
	return hosts
}

// Print writes the human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "Results")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "  total:        %d\n", s.Total)
	fmt.Fprintf(w, "  succeeded:    %d (%.1f%%)\n", s.Succeeded, s.SuccessRate()*100)
	fmt.Fprintf(w, "  failed:       %d\n", s.Total-s.Succeeded)
	fmt.Fprintf(w, "  latency min:  %s\n", s.Min.Round(time.Microsecond))
	fmt.Fprintf(w, "  latency max:  %s\n", s.Max.Round(time.Microsecond))
	fmt.Fprintf(w, "  latency avg:  %s\n", s.Avg.Round(time.Microsecond))

	fmt.Fprintf(w, "\nDistribution across %d replica(s)\n", len(s.ByHost))
	for _, h := range s.Hosts() {
		n := s.ByHost[h]
		pct := 0.0
		if s.Succeeded > 0 {
			pct = float64(n) / float64(s.Succeeded) * 100
		}
		fmt.Fprintf(w, "  %-30s %5d  %5.1f%%  %s\n", h, n, pct, strings.Repeat("#", int(pct/2)))
	}

	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors")
		for msg, n := range s.Errors {
			fmt.Fprintf(w, "  %4d  %s\n", n, msg)
		}
	}
}

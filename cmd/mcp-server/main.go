// ABOUTME: Entry point for the MCP server
// ABOUTME: Subcommands serve, validate, health, version and token

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/2389/mcp-scaffold/internal/auth"
	"github.com/2389/mcp-scaffold/internal/config"
	"github.com/2389/mcp-scaffold/internal/logging"
	"github.com/2389/mcp-scaffold/internal/validate"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errValidation marks a failed startup gate; the report is already logged.
var errValidation = errors.New("configuration validation failed")

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mcp-server [--config PATH] [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Start the MCP server (default)")
	fmt.Fprintln(w, "  validate   Check the configuration and exit")
	fmt.Fprintln(w, "  health     Check a running server's /health endpoint")
	fmt.Fprintln(w, "  version    Print version information")
	fmt.Fprintln(w, "  token      Generate a random bearer token")
	fmt.Fprintln(w, "  help       Show this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The config path defaults to $MCP_CONFIG, then "+config.DefaultPath+".")
}

func main() {
	fs := flag.NewFlagSet("mcp-server", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { usage(os.Stderr) }
	configFlag := fs.String("config", "", "path to the settings file (YAML or TOML)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// A missing .env is normal; existing variables are never overridden.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := config.ResolvePath(*configFlag)
	command := "serve"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	var err error
	switch command {
	case "serve":
		err = runServe(ctx, configPath)
	case "validate":
		err = runValidate(configPath)
	case "health":
		err = runHealth(ctx, configPath)
	case "version":
		err = runVersion(configPath)
	case "token":
		err = runToken()
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		if !errors.Is(err, errValidation) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the file once to configure logging, then builds the
// provider with that logger so reload messages land in the same place.
func loadConfig(path string) (*config.Provider, *slog.Logger, io.Closer, error) {
	tree, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, closer := logging.New(logging.SettingsFrom(tree), os.Stdout)

	provider, err := config.NewProvider(path, logger)
	if err != nil {
		closer.Close()
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return provider, logger, closer, nil
}

func runValidate(configPath string) error {
	provider, logger, closer, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer closer.Close()

	report := validate.Run(provider)
	report.Log(logger)
	if !report.OK() {
		return errValidation
	}
	fmt.Println("configuration OK")
	return nil
}

func runHealth(ctx context.Context, configPath string) error {
	provider, _, closer, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer closer.Close()

	host := provider.Host()
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(provider.Port())) + "/health"

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Printf("healthy (served by %s)\n", resp.Header.Get("X-Served-By"))
	return nil
}

func runVersion(configPath string) error {
	fmt.Printf("mcp-server %s\n", version)
	tree, err := config.Load(configPath)
	if err != nil {
		// The binary version is still useful without a config file.
		if config.IsNotFound(err) {
			return nil
		}
		return err
	}
	fmt.Printf("%s %s\n", tree.GetString("mcp.name", "template-mcp"), tree.GetString("server.version", "1.0.0"))
	return nil
}

func runToken() error {
	tok, err := auth.GenerateToken(32)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

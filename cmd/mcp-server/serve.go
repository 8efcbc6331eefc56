// ABOUTME: serve subcommand: validates config, discovers capabilities and runs HTTP
// ABOUTME: SIGHUP reloads configuration; SIGINT/SIGTERM drain and exit

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/mcp-scaffold/internal/config"
	"github.com/2389/mcp-scaffold/internal/db"
	"github.com/2389/mcp-scaffold/internal/discovery"
	"github.com/2389/mcp-scaffold/internal/pipeline"
	"github.com/2389/mcp-scaffold/internal/plugins"
	"github.com/2389/mcp-scaffold/internal/ratelimit"
	"github.com/2389/mcp-scaffold/internal/registry"
	"github.com/2389/mcp-scaffold/internal/server"
	"github.com/2389/mcp-scaffold/internal/validate"
)

const banner = `
  _ __ ___   ___ _ __
 | '_ ' _ \ / __| '_ \
 | | | | | | (__| |_) |
 |_| |_| |_|\___| .__/
                |_|
`

func runServe(ctx context.Context, configPath string) error {
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

	reg := discoverCapabilities(ctx, provider, logger)
	printBanner(provider, configPath, reg)

	limiter, err := ratelimit.New(ratelimit.SettingsFrom(provider), logger)
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}

	var database *db.Connector
	if dbSettings := db.SettingsFrom(provider); dbSettings.Enabled() {
		database = db.New(dbSettings, logger)
		if err := database.Connect(ctx); err != nil {
			// Deep health reports the outage; the server still answers.
			logger.Error("database unavailable at startup", "error", err)
		}
	}

	var metrics *pipeline.Metrics
	if provider.GetBool("metrics.enabled", true) {
		metrics = pipeline.NewMetrics()
	}

	srv, err := server.New(server.Options{
		Config:   provider,
		Registry: reg,
		Limiter:  limiter,
		Database: database,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	go watchReload(ctx, provider, logger)

	logger.Info("starting MCP server",
		"config", configPath,
		"addr", srv.Addr(),
		"version", version,
	)
	return srv.Run(ctx)
}

func discoverCapabilities(ctx context.Context, provider *config.Provider, logger *slog.Logger) *registry.Registry {
	b := registry.NewBuilder(logger)
	discovery.New(logger).DiscoverAll(ctx, b, discovery.Options{
		Builtins: plugins.Builtins(provider),
		Dirs: map[registry.Kind]string{
			registry.KindTool:     provider.GetString("mcp.plugin_dirs.tools", "plugins/tools"),
			registry.KindResource: provider.GetString("mcp.plugin_dirs.resources", "plugins/resources"),
			registry.KindPrompt:   provider.GetString("mcp.plugin_dirs.prompts", "plugins/prompts"),
		},
		ScanDirs: provider.AutoDiscover(),
	})
	return b.Build()
}

// watchReload swaps in a fresh configuration on SIGHUP. Capabilities and the
// listener are not rebuilt; values read per request (auth, server info) are.
func watchReload(ctx context.Context, provider *config.Provider, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := provider.Reload(); err != nil {
				continue
			}
			validate.Run(provider).Log(logger)
		}
	}
}

func printBanner(provider *config.Provider, configPath string, reg *registry.Registry) {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	row := func(label, value string) {
		green.Print("    ▶ ")
		fmt.Printf("%-16s %s\n", label+":", value)
	}

	row("Name", provider.Name())
	row("Version", provider.Version())
	row("Config", configPath)
	row("Listen", fmt.Sprintf("%s:%d", provider.Host(), provider.Port()))

	green.Print("    ▶ ")
	fmt.Printf("%-16s ", "Authentication:")
	if provider.AuthEnabled() {
		green.Println("enabled")
	} else {
		red.Println("disabled")
	}

	green.Print("    ▶ ")
	fmt.Printf("%-16s ", "Mode:")
	if provider.Stateless() {
		fmt.Println("stateless (scalable)")
	} else {
		yellow.Println("stateful (single replica)")
	}

	row("Capabilities", fmt.Sprintf("%d tools, %d resources, %d prompts",
		reg.Count(registry.KindTool), reg.Count(registry.KindResource), reg.Count(registry.KindPrompt)))
	fmt.Println()
}

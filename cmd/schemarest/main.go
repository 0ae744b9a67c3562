// Package main is the entry point for the schemarest server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/artpar/schemarest/bootstrap"
	"github.com/artpar/schemarest/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "schemarest.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	hotReload := flag.Bool("hot-reload", true, "Enable hot reload of configuration")
	flag.Parse()

	// Version command
	if *showVersion {
		fmt.Printf("schemarest %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Validate only mode
	if *validate {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration valid\n")
		fmt.Printf("  Database: %s (%s)\n", cfg.Database.Driver, cfg.Database.DSN)
		fmt.Printf("  Schemas: %s\n", cfg.Schemas.Dir)
		os.Exit(0)
	}

	bootstrap.Version = version

	// Create application
	var app *bootstrap.App
	var err error

	if *hotReload {
		app, err = bootstrap.NewWithHotReload(*configPath)
	} else {
		cfg, loadErr := config.LoadWithFallback(*configPath)
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", loadErr)
			os.Exit(1)
		}
		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	// Run (blocks until shutdown)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Copyright 2025 The MarioServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the healthcare search server and its interactive CLI.

MarioServe answers search-as-you-type lookups over a vocabulary of providers,
specialties, procedures and medications. It resolves a finished query to a
single entity or a specialty collection, and ranks care options by price,
distance, rating or best value.

# Usage

Start the IPC server with default settings:

	marioserve

Serve the JSON HTTP API instead, with debug logs:

	marioserve -http :8080 -d

Run the interactive CLI against a local snapshot:

	marioserve -c -data ./data/vocabulary.json

# Data

The engine reads a snapshot with "terms" and optional "candidates". A local
file (.json or .msgpack) is used unless [data] base_url is configured, in
which case both endpoints are fetched over HTTP. Malformed fields are
coerced with a warning; malformed JSON is repaired. A failed refresh keeps
the previous snapshot, and refresh_interval_s enables periodic refreshes.

# Configuration

Runtime configuration lives in marioserve.toml:

	[server]
	max_limit = 64
	min_query = 1
	max_query = 120

	[async]
	debounce_ms = 300
	timeout_ms = 5000

	[data]
	path = "data/vocabulary.json"
	base_url = ""

The file is created with defaults if it doesn't exist. The IPC server
reloads it periodically.

# IPC Protocol

The default mode speaks msgpack over stdin/stdout. See package server for
the request and response shapes:

	{"id": "r1", "cmd": "suggest", "q": "orth", "l": 8}
	{"id": "r1", "s": [{"w": "Orthopedic Surgery", "cat": "specialty", "r": 1}], "c": 1, "t": 85}

# Command Line Flags

	-data string
	    Snapshot file, overrides the configured data source
	-config string
	    Path to a custom config file
	-http string
	    Serve the HTTP API on this address instead of IPC
	-d  Enable debug mode with detailed logging
	-c  Run the interactive CLI
	-limit int
	    Number of suggestions in CLI mode
	-qmin int
	    Minimum query length in CLI mode
	-qmax int
	    Maximum query length in CLI mode
	-no-filter
	    Disable CLI input filtering
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/internal/cli"
	"github.com/mariohealth/marioserve/internal/logger"
	"github.com/mariohealth/marioserve/pkg/config"
	"github.com/mariohealth/marioserve/pkg/engine"
	"github.com/mariohealth/marioserve/pkg/httpapi"
	"github.com/mariohealth/marioserve/pkg/server"
)

const (
	Version = "0.4.0"
	AppName = "marioserve"
	gh      = "https://github.com/mariohealth/marioserve"
)

// main wires config, engine and the selected front end.
func main() {
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	dataPath := flag.String("data", "", "Snapshot file (.json or .msgpack), overrides the configured source")
	configFile := flag.String("config", "", "Path to custom config file")
	httpAddr := flag.String("http", "", "Serve the HTTP API on this address instead of IPC")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	limit := flag.Int("limit", defaultConfig.Suggest.DefaultLimit, "Number of suggestions to return in CLI mode")
	minQuery := flag.Int("qmin", defaultConfig.Suggest.MinQueryLen, "Minimum query length in CLI mode")
	maxQuery := flag.Int("qmax", defaultConfig.Server.MaxQuery, "Maximum query length in CLI mode")
	noFilter := flag.Bool("no-filter", false, "Disable CLI input filtering (DBG only)")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	cfg, configPath, err := config.LoadConfigWithPriority(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *debugMode {
		cfg.HTTP.Mode = "debug"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := cfg.NewSource(*dataPath, nil)
	eng, err := engine.New(src, cfg.EngineOptions())
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	if err := eng.Refresh(ctx); err != nil {
		log.Warnf("Initial load from %s failed, serving empty results until a refresh succeeds: %v", src.Name(), err)
	}
	go func() {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Refresh loop stopped: %v", err)
		}
	}()

	switch {
	case *cliMode:
		log.SetReportTimestamp(false)
		log.Debug("Input info:", "minQuery", *minQuery, "maxQuery", *maxQuery, "limit", *limit, "noFilter", *noFilter)
		handler := cli.NewInputHandler(eng, cli.Options{
			MinLen:   *minQuery,
			MaxLen:   *maxQuery,
			Limit:    *limit,
			NoFilter: *noFilter,
			Filter:   cfg.FilterSpec(),
		}, os.Stdin, os.Stderr)
		if err := handler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}

	case *httpAddr != "":
		runHTTP(ctx, cfg, eng)

	default:
		srv, err := server.NewServer(eng, cfg, configPath)
		if err != nil {
			log.Fatalf("Failed to create server: %v", err)
		}
		// decoding blocks on stdin, so a signal exits from here
		go func() {
			<-ctx.Done()
			fmt.Fprintf(os.Stderr, "\nExiting...\n")
			srv.Close()
			os.Exit(0)
		}()
		showStartupInfo(src.Name(), configPath)
		if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			srv.Close()
			log.Fatalf("IPC server stopped: %v", err)
		}
		srv.Close()
	}
}

func runHTTP(ctx context.Context, cfg *config.Config, eng *engine.Engine) {
	api := httpapi.New(cfg, eng)
	errCh := make(chan error, 1)
	go func() { errCh <- api.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("HTTP API failed: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Stop(shutdownCtx); err != nil {
			log.Errorf("HTTP API shutdown: %v", err)
		}
	}
}

func printVersion() {
	l := logger.NewWithConfig("", log.InfoLevel, false, false, log.TextFormatter)

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	l.SetStyles(styles)

	l.Print("")
	l.Print("[ MarioServe ] Healthcare search, suggestions and ranking")
	l.Print("", "version", Version)
	l.Print("")
	l.Print("use -h or --help to see available options")
	l.Print("Github Repo", "gh", gh)
}

// showStartupInfo prints basic info about the init process to stderr.
func showStartupInfo(sourceName, configPath string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(currentLevel)

	fmt.Fprintln(os.Stderr, "============")
	fmt.Fprintln(os.Stderr, " MarioServe ")
	fmt.Fprintln(os.Stderr, "============")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("data source: ( %s )", sourceName)
	if configPath != "" {
		log.Infof("config: ( %s )", configPath)
	}
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "============")
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/DreamCats/caseindex/cmd/caseindex/internal"
	"github.com/DreamCats/caseindex/internal/config"
)

// main parses global flags, loads configuration and dispatches the subcommand.
func main() {
	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	configPath := ""
	corpusPath := ""
	args := os.Args[1:]

	// Handle special flags that don't require subcommand
	for _, arg := range args {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			internal.PrintUsage()
			os.Exit(0)
		}
		if arg == "-v" || arg == "-version" || arg == "--version" {
			fmt.Printf("caseindex version %s\n", internal.Version)
			os.Exit(0)
		}
	}

	validSubcommands := map[string]bool{
		"index":  true,
		"ask":    true,
		"search": true,
		"eval":   true,
		"stats":  true,
		"serve":  true,
		"mcp":    true,
	}

	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && validSubcommands[arg] {
			subcommandIndex = i
			break
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	// Parse global flags (before subcommand)
	globalFlags := args[:subcommandIndex]
	for i := 0; i < len(globalFlags); i++ {
		flag := globalFlags[i]
		switch {
		case flag == "-config" || flag == "--config":
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		case flag == "-corpus" || flag == "--corpus":
			if i+1 < len(globalFlags) {
				corpusPath = globalFlags[i+1]
				i++
			}
		case strings.HasPrefix(flag, "-"):
			fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
			internal.PrintUsage()
			os.Exit(1)
		}
	}

	if err := internal.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		var notFoundErr *config.ConfigNotFoundError
		if errors.As(err, &notFoundErr) {
			if subcommand == "index" {
				created, createErr := config.WriteDefaultTemplate(notFoundErr.RequestedPath)
				if createErr != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
					fmt.Fprintf(os.Stderr, "Also failed to create default config at %s: %v\n\n", notFoundErr.RequestedPath, createErr)
					internal.PrintConfigExample()
					os.Exit(1)
				}
				if created {
					fmt.Fprintf(os.Stderr, "Created default config at %s\n", notFoundErr.RequestedPath)
				}
				fmt.Fprintln(os.Stderr, "Please set corpus.path and the model endpoints in the config file and rerun `caseindex index`.")
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			internal.PrintConfigExample()
			os.Exit(1)
		}
		log.Fatalf("Failed to load config: %v\n", err)
	}

	if corpusPath != "" {
		cfg.Corpus.Path = corpusPath
	}
	corpusRoot, err := cfg.CorpusRoot()
	if err != nil {
		log.Fatalf("Failed to resolve corpus directory: %v\n", err)
	}
	cfg.Corpus.Path = corpusRoot
	corpusName, err := cfg.CorpusName()
	if err != nil {
		log.Fatalf("Failed to resolve corpus directory: %v\n", err)
	}

	if err := internal.SetupLogging(subcommand, corpusName, corpusRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch subcommand {
	case "index":
		runErr = handleIndex(ctx, cfg, corpusName, subcommandArgs)
	case "ask":
		runErr = handleAsk(ctx, cfg, subcommandArgs)
	case "search":
		runErr = handleSearch(ctx, cfg, subcommandArgs)
	case "eval":
		runErr = handleEval(ctx, cfg, subcommandArgs)
	case "stats":
		runErr = handleStats(cfg, subcommandArgs)
	case "serve":
		runErr = handleServe(ctx, cfg, subcommandArgs)
	case "mcp":
		runErr = handleMCP(ctx, cfg, subcommandArgs)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		stop()
		log.Fatalf("%s failed: %v", subcommand, runErr)
	}
}

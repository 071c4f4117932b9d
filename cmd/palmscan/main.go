package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/palmscan/palmscan/internal/config"
	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/fortune"
	"github.com/palmscan/palmscan/internal/logger"
	"github.com/palmscan/palmscan/internal/mcp"
	"github.com/palmscan/palmscan/internal/ops"
	"github.com/palmscan/palmscan/internal/remote"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"parse": true, "preview": true, "date": true,
	"save": true, "fetch": true, "history": true, "latest": true, "search": true,
	"delete": true, "purge": true, "export": true, "import": true,
	"scan": true, "predict": true, "web": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "--help", "-h", "--version", "-v", "help":
		return true
	}
	return false
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___       _
  | _ \__ _ | |_ __  ___ __ __ _ _ _
  |  _/ _' || | '  \(_-</ _/ _' | ' \
  |_| \__,_||_|_|_|_/__/\__\__,_|_||_|

  Palm scan fortunes, parsed

  Usage: palmscan <command> [options]
         palmscan --help

  MCP server mode requires piped input.`)
}

// buildEnv loads config from baseDir, opens the store and wires the parser,
// logger and remote client. The returned func closes the store.
func buildEnv(baseDir string) (*ops.Env, func(), error) {
	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWith(os.Stderr, "palmscan", cfg.LogLevel, cfg.LogPretty)

	parser := fortune.Default()
	if cfg.VocabularyPath != "" {
		v, err := fortune.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, nil, err
		}
		if parser, err = fortune.NewParser(v); err != nil {
			return nil, nil, fmt.Errorf("vocabulary %s: %w", cfg.VocabularyPath, err)
		}
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	env := &ops.Env{
		DB:     database,
		Config: cfg,
		Parser: parser,
		Log:    log,
	}
	if cfg.Service.BaseURL != "" {
		env.Service = remote.New(cfg.Service, remote.TokenFromConfig(cfg.Service), log)
	}

	return env, func() { database.Close() }, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode(os.Args) && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'palmscan --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	env, closeEnv, err := buildEnv(filepath.Join(homeDir, config.DirName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if isCLIMode(os.Args) {
		err = newCLIApp(env).RunContext(ctx, os.Args)
	} else {
		// MCP server mode (default)
		err = mcp.Run(ctx, env, Version)
	}

	stop()
	closeEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

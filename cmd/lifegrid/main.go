package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jmhodges/clock"

	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/db"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/logger"
	"github.com/hpungsan/lifegrid/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"setup": true, "profile": true, "periods": true, "resolve": true,
	"memo": true, "top": true, "grid": true, "stats": true, "theme": true,
	"export": true, "import": true, "reset": true, "snapshots": true,
	"serve": true, "help": true,
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
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _ _  __                 _     _
  | (_)/ _| ___  __ _ _ __(_) __| |
  | | | |_ / _ \/ _' | '__| |/ _' |
  | | |  _|  __/ (_| | |  | | (_| |
  |_|_|_|  \___|\__, |_|  |_|\__,_|
                |___/

  A life drawn in squares: years, months, weeks and days

  Usage: lifegrid <command> [options]
         lifegrid serve
         lifegrid --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	cliMode := isCLIMode(os.Args)
	if !cliMode && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'lifegrid --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fail("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fail("failed to create logger: %v", err)
	}
	defer log.Sync()

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := db.NewDocumentStore(database, cfg.StorageKey).WithRetention(cfg.MaxSnapshots)
	eng, err := engine.Open(ctx, store, engine.Options{
		Clock:                 clock.New(),
		Logger:                log,
		DefaultLifeExpectancy: cfg.DefaultLifeExpectancy,
	})
	if err != nil {
		fail("failed to open document: %v", err)
	}

	if cliMode {
		app := newCLIApp(&deps{eng: eng, store: store, cfg: cfg, log: log})
		if err := app.RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			stop()
			os.Exit(1)
		}
		return
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	// MCP server mode (default)
	if err := mcp.Run(eng, cfg, log, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

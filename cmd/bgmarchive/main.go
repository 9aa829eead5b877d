// Package main is the entry point for bgmarchive.
//
// bgmarchive ingests a catalog archive snapshot (a zip of jsonlines files) into
// indexed stores under a data directory, and answers point lookups and
// relation queries from the command line or over a read-only HTTP API.
// Configuration is read from CLI flags, a .env file and config.yml in the data
// directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maruel/bgmarchive/internal/storage"
)

const usage = `usage: bgmarchive [flags] <command> [args]

commands:
  rebuild [-archive path]      ingest the archive snapshot zip
  get <kind> <id>              print a record or a relation as JSON
                               kind: subject, episode, person, character,
                               episodes, persons, characters, related
  status                       print the state of every store and relation
  serve [-http addr] [-watch]  serve the read-only HTTP API; a rebuild run
                               by another process is picked up live

flags:
`

func main() {
	if err := mainImpl(os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "bgmarchive: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("bgmarchive", flag.ContinueOnError)
	version := fs.Bool("version", false, "Print version and exit")
	dataDir := fs.String("data-dir", "./data", "Data directory")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Usage = func() {
		_, _ = fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		printVersion(stdout)
		return nil
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	ll := setupLogging()
	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}
	if !isSet(fs, "log-level") {
		if v := env["LOG_LEVEL"]; v != "" {
			*logLevel = v
		}
	}
	if err := setLevel(ll, *logLevel); err != nil {
		return err
	}
	cfg, err := storage.LoadConfig(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", storage.ConfigFileName, err)
	}
	archive, err := storage.Open(*dataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	slog.DebugContext(ctx, "Running", "cmd", cmd, "dataDir", archive.Root())
	switch cmd {
	case "rebuild":
		return cmdRebuild(ctx, archive, cfg, env, rest)
	case "get":
		return cmdGet(archive, rest, stdout)
	case "status":
		if len(rest) != 0 {
			return fmt.Errorf("unknown arguments: %v", rest)
		}
		return writeJSON(stdout, archive.Status())
	case "serve":
		return cmdServe(ctx, archive, cfg, env, rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// isSet returns true if the flag was explicitly passed on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

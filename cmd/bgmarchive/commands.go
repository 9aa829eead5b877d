package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/bgmarchive/internal/lock"
	"github.com/maruel/bgmarchive/internal/server"
	"github.com/maruel/bgmarchive/internal/server/ratelimit"
	"github.com/maruel/bgmarchive/internal/storage"
)

func cmdRebuild(ctx context.Context, a *storage.Archive, cfg *storage.Config, env map[string]string, args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ContinueOnError)
	archivePath := fs.String("archive", cfg.ArchivePath(a.Root()), "Archive snapshot zip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}
	if !isSet(fs, "archive") {
		if v := env["ARCHIVE"]; v != "" {
			*archivePath = v
		}
	}
	return a.Rebuild(ctx, *archivePath, storage.RebuildOptions{Parallelism: cfg.Rebuild.Parallelism})
}

func cmdGet(a *storage.Archive, args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: get <kind> <id>")
	}
	kind := args[0]
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id < 0 {
		return fmt.Errorf("invalid id %q", args[1])
	}
	var v any
	found := true
	switch kind {
	case "subject":
		s := a.Subject(id)
		v, found = s, s != nil
	case "episode":
		e := a.Episode(id)
		v, found = e, e != nil
	case "person":
		p := a.Person(id)
		v, found = p, p != nil
	case "character":
		c := a.Character(id)
		v, found = c, c != nil
	case "episodes":
		v = a.Episodes(id)
	case "persons":
		v = a.Persons(id)
	case "characters":
		v = a.Characters(id)
	case "related":
		v = a.Related(id)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	if !found {
		return fmt.Errorf("%s %d not found", kind, id)
	}
	return writeJSON(stdout, v)
}

func cmdServe(ctx context.Context, a *storage.Archive, cfg *storage.Config, env map[string]string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	httpAddr := fs.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	watch := fs.Bool("watch", false, "Rebuild when the archive snapshot changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}
	if !isSet(fs, "http") {
		if v := env["HTTP"]; v != "" {
			*httpAddr = v
		}
	}
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	if *watch {
		zipPath := cfg.ArchivePath(a.Root())
		if v := env["ARCHIVE"]; v != "" {
			zipPath = v
		}
		rebuild := func(ctx context.Context) error {
			return a.Rebuild(ctx, zipPath, storage.RebuildOptions{Parallelism: cfg.Rebuild.Parallelism})
		}
		if err := watchArchive(ctx, zipPath, cfg.Rebuild.WatchDelay, rebuild); err != nil {
			return fmt.Errorf("failed to watch archive: %w", err)
		}
	}
	if err := watchRelations(ctx, a.Root(), a.ResetRelations); err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}
	if !a.Ready() {
		slog.WarnContext(ctx, "Archive not ingested yet, run rebuild", "root", a.Root())
	}

	var limiter *ratelimit.Limiter
	if n := cfg.RateLimits.ReadRatePerMin; n > 0 {
		limiter = ratelimit.NewLimiter(n, time.Minute, max(n/10, 1))
		defer limiter.Close()
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(a, limiter),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		version, _, _, _ := getBuildInfo()
		slog.InfoContext(ctx, "Starting server", "addr", addr, "version", version, "watch", *watch)
		serverErr <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// logRebuildError reports a failed watched rebuild without stopping the
// server.
func logRebuildError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled):
	case errors.Is(err, lock.ErrLocked):
		slog.WarnContext(ctx, "Rebuild already in progress")
	default:
		slog.ErrorContext(ctx, "Rebuild failed", "err", err)
	}
}

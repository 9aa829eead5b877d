package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maruel/bgmarchive/internal/archivedb"
)

// watchArchive calls rebuild each time the file at path is written or
// created and then stays quiet for delay.
//
// The parent directory is watched so that an archive replaced by rename is
// still noticed. The watch stops when ctx is done.
func watchArchive(ctx context.Context, path string, delay time.Duration, rebuild func(context.Context) error) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		timer := time.NewTimer(delay)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					timer.Reset(delay)
				}
			case <-timer.C:
				slog.InfoContext(ctx, "Archive modified, rebuilding", "path", path)
				if err := rebuild(ctx); err != nil {
					logRebuildError(ctx, err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching archive", "err", err)
			}
		}
	}()
	slog.InfoContext(ctx, "Watching archive", "path", path, "delay", delay)
	return nil
}

// watchRelations calls reset each time a relation file is renamed into or
// removed from root, which is how a rebuild run by another process swaps in a
// new generation. The watch stops when ctx is done.
func watchRelations(ctx context.Context, root string, reset func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(root); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, archivedb.RelationExt) {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					slog.DebugContext(ctx, "Relation file changed", "path", event.Name)
					reset()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching data directory", "err", err)
			}
		}
	}()
	return nil
}

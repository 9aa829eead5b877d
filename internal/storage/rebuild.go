// Ingests an archive snapshot zip into a new generation of stores.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/maruel/bgmarchive/internal/archivedb"
	"github.com/maruel/bgmarchive/internal/lock"
	"github.com/maruel/bgmarchive/internal/models"
)

// ErrMissingMember is returned when a required member is absent from the
// snapshot zip.
var ErrMissingMember = errors.New("storage: archive member missing")

// memberExt is the extension of every data member of a snapshot zip.
const memberExt = ".jsonlines"

// RebuildOptions tunes Archive.Rebuild.
type RebuildOptions struct {
	// Parallelism bounds concurrent extraction and indexing. Defaults to 4.
	Parallelism int
}

// stagedStore is the part of archivedb.Store used while building a
// generation, independent of the record type.
type stagedStore interface {
	Name() string
	DataPath() string
	GenerateIndex(ctx context.Context, scratch archivedb.Scratch) error
	Move(dir, name string) error
}

// Rebuild ingests the snapshot at zipPath and swaps it in place of the current
// generation.
//
// Stores are extracted and indexed in a staging directory and relation maps are
// built in memory, so queries keep hitting the previous generation until the
// final swap. Cancellation or an error before the swap leaves the previous
// generation untouched. Only one rebuild can run per root; a concurrent call
// fails with lock.ErrLocked.
func (a *Archive) Rebuild(ctx context.Context, zipPath string, opts RebuildOptions) error {
	start := time.Now()
	l, err := lock.Acquire(a.root)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			slog.Warn("Failed to release lock", "root", a.root, "err", err)
		}
	}()
	if err := a.scratch.Purge(); err != nil {
		return fmt.Errorf("failed to purge scratch directory: %w", err)
	}
	staging, err := a.scratch.NewStagingDir()
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			slog.Warn("Failed to remove staging directory", "path", staging, "err", err)
		}
	}()

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		_ = zr.Close()
	}()
	members := zipMembers(zr.File)
	for _, name := range []string{SubjectStore, EpisodeStore} {
		if members[name] == nil {
			return fmt.Errorf("%w: %s%s", ErrMissingMember, name, memberExt)
		}
	}
	slog.InfoContext(ctx, "Rebuilding", "root", a.root, "archive", zipPath, "members", len(members))

	stagedEpisodes := a.episodes.Fork(staging, EpisodeStore)
	stores := []stagedStore{
		a.subjects.Fork(staging, SubjectStore),
		stagedEpisodes,
		a.persons.Fork(staging, PersonStore),
		a.characters.Fork(staging, CharacterStore),
	}
	limit := opts.Parallelism
	if limit <= 0 {
		limit = 4
	}

	// Stage the entity stores.
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	var staged []stagedStore
	for _, s := range stores {
		f := members[s.Name()]
		if f == nil {
			slog.WarnContext(ctx, "Archive member missing, keeping previous store", "member", s.Name()+memberExt)
			continue
		}
		staged = append(staged, s)
		eg.Go(func() error {
			if err := extract(ectx, f, s.DataPath()); err != nil {
				return err
			}
			return s.GenerateIndex(ectx, a.scratch)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	// Build the relation files in the staging directory.
	episodes := a.subjectEpisodes.Fork(staging)
	persons := a.subjectPersons.Fork(staging)
	relations := a.subjectRelations.Fork(staging)
	characters := a.subjectCharacters.Fork(staging)
	rg, rctx := errgroup.WithContext(ctx)
	rg.SetLimit(limit)
	rg.Go(func() error {
		return episodes.GenerateIndex(rctx, archivedb.FromSeq(stagedEpisodes.All(), func(e *models.Episode) (int32, int32, bool) {
			k, ok := relationKey(e.SubjectID)
			id, ok2 := relationKey(e.ID)
			return k, id, ok && ok2
		}), a.scratch)
	})
	swaps := []relationSwap{{episodes, a.subjectEpisodes.Path(), a.subjectEpisodes.Reset}}
	if f := members[SubjectPersons]; f != nil {
		swaps = append(swaps, relationSwap{persons, a.subjectPersons.Path(), a.subjectPersons.Reset})
		rg.Go(func() error {
			return persons.GenerateIndex(rctx, memberSource(f, func(r *models.SubjectPerson) (int32, archivedb.Member, bool) {
				return r.SubjectID, archivedb.Member{ID: r.PersonID, Type: r.Position}, true
			}), a.scratch)
		})
	} else {
		slog.WarnContext(ctx, "Archive member missing, keeping previous relation", "member", SubjectPersons+memberExt)
	}
	if f := members[SubjectRelations]; f != nil {
		swaps = append(swaps, relationSwap{relations, a.subjectRelations.Path(), a.subjectRelations.Reset})
		rg.Go(func() error {
			return relations.GenerateIndex(rctx, memberSource(f, func(r *models.SubjectRelation) (int32, archivedb.Member, bool) {
				return r.SubjectID, archivedb.Member{ID: r.RelatedSubjectID, Type: r.RelationType}, true
			}), a.scratch)
		})
	} else {
		slog.WarnContext(ctx, "Archive member missing, keeping previous relation", "member", SubjectRelations+memberExt)
	}
	if f := members[SubjectCharacters]; f != nil {
		swaps = append(swaps, relationSwap{characters, a.subjectCharacters.Path(), a.subjectCharacters.Reset})
		rg.Go(func() error {
			return characters.GenerateIndex(rctx, memberSource(f, func(r *models.SubjectCharacter) (int32, archivedb.Member, bool) {
				return r.SubjectID, archivedb.Member{ID: r.CharacterID, Type: r.Type}, true
			}), a.scratch)
		})
	} else {
		slog.WarnContext(ctx, "Archive member missing, keeping previous relation", "member", SubjectCharacters+memberExt)
	}
	if err := rg.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Keep the previous relation files until the next purge.
	for _, s := range swaps {
		if _, err := a.scratch.SetAside(s.live); err != nil {
			return err
		}
	}

	// Swap. Everything is fully written at this point; only renames remain.
	// Each rename is atomic; readers may briefly see a mix of generations
	// across files, never a torn file.
	defer func() {
		for _, s := range swaps {
			s.reset()
		}
	}()
	for _, s := range staged {
		if err := s.Move(a.root, s.Name()); err != nil {
			return err
		}
	}
	for _, s := range swaps {
		if err := s.staged.Move(s.live); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "Rebuilt", "root", a.root, "stores", len(staged), "relations", len(swaps), "dur", time.Since(start).Round(time.Millisecond))
	return nil
}

// relationSwap is a relation file built in the staging directory, waiting to
// replace the live one.
type relationSwap struct {
	staged interface{ Move(dst string) error }
	live   string
	reset  func()
}

// zipMembers indexes the .jsonlines members of a zip by base name without
// extension. The first member wins on duplicates.
func zipMembers(files []*zip.File) map[string]*zip.File {
	out := map[string]*zip.File{}
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if path.Ext(base) != memberExt {
			continue
		}
		name := base[:len(base)-len(memberExt)]
		if out[name] == nil {
			out[name] = f
		}
	}
	return out
}

// extract copies a zip member to dst, checking ctx between reads.
func extract(ctx context.Context, f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // G302,G304: dst is in the staging directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	progress := archivedb.NewProgress()
	cr := &ctxReader{ctx: ctx, r: rc}
	cr.progress = func(n int64) {
		progress.Do(func() {
			slog.InfoContext(ctx, "Extracting", "member", f.Name, "bytes", n, "total", f.UncompressedSize64)
		})
	}
	if _, err := io.Copy(out, cr); err != nil {
		return errors.Join(fmt.Errorf("failed to extract %s: %w", f.Name, err), out.Close())
	}
	if err := out.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync %s: %w", dst, err), out.Close())
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return nil
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx      context.Context
	r        io.Reader
	n        int64
	progress func(n int64)
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	c.progress(c.n)
	return n, err
}

// memberSource decodes the lines of a zip member as a relation source.
func memberSource[T, V any](f *zip.File, fn func(*T) (int32, V, bool)) archivedb.Source[V] {
	return func(yield func(int32, V) bool) error {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		defer func() {
			_ = rc.Close()
		}()
		if err := archivedb.DecodeLines(rc, fn)(yield); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		return nil
	}
}

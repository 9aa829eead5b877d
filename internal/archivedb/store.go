package archivedb

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// DataExt is the extension of entity data files.
	DataExt = ".jsonlines"
	// IndexExt is the extension of entity index files.
	IndexExt = ".idx"
)

// Store is a read-only, id-indexed JSONL file of T records.
//
// A Store is only a descriptor: it holds no file handle and no cache, so it is
// safe for concurrent use and every call sees the files currently in place.
type Store[T any] struct {
	dir  string
	name string
}

// NewStore returns the store named name in dir. The files do not need to
// exist.
func NewStore[T any](dir, name string) *Store[T] {
	return &Store[T]{dir: dir, name: name}
}

// Name returns the base name of the store files.
func (s *Store[T]) Name() string {
	return s.name
}

// DataPath returns the path of the JSONL data file.
func (s *Store[T]) DataPath() string {
	return filepath.Join(s.dir, s.name+DataExt)
}

// IndexPath returns the path of the index file.
func (s *Store[T]) IndexPath() string {
	return filepath.Join(s.dir, s.name+IndexExt)
}

// Exists returns true if both the data file and the index file are present.
func (s *Store[T]) Exists() bool {
	return fileExists(s.DataPath()) && fileExists(s.IndexPath())
}

// All returns an iterator over every decodable record of the data file, in
// file order.
//
// Each call opens its own file handle. Lines without an id or that fail to
// decode are skipped; a read error ends the iteration.
func (s *Store[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		f, err := os.Open(s.DataPath())
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("Failed to open data file", "path", s.DataPath(), "err", err)
			}
			return
		}
		defer func() {
			_ = f.Close()
		}()
		r := bufio.NewReaderSize(f, 1<<16)
		for {
			line, err := readLine(r)
			if err != nil && !errors.Is(err, io.EOF) {
				slog.Warn("Failed to read data file", "path", s.DataPath(), "err", err)
				return
			}
			if _, ok := lineID(line); ok {
				row := new(T)
				if err2 := json.Unmarshal(line, row); err2 == nil {
					if !yield(row) {
						return
					}
				}
			}
			if err != nil {
				return
			}
		}
	}
}

// Get returns the record with the given id, or nil if there is none.
//
// Get never fails: a missing store, an id outside of the index, an I/O error
// or a malformed line are all reported as not found.
func (s *Store[T]) Get(id int64) *T {
	if id < 0 {
		return nil
	}
	off, ok := s.offset(id)
	if !ok {
		return nil
	}
	f, err := os.Open(s.DataPath())
	if err != nil {
		return nil
	}
	defer func() {
		_ = f.Close()
	}()
	fi, err := f.Stat()
	if err != nil || off >= fi.Size() {
		return nil
	}
	r := bufio.NewReader(io.NewSectionReader(f, off, fi.Size()-off))
	line, err := readLine(r)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil
	}
	// The index may belong to another generation while a swap is in progress.
	if got, ok := lineID(line); !ok || got != id {
		return nil
	}
	row := new(T)
	if err := json.Unmarshal(line, row); err != nil {
		slog.Warn("Failed to decode record", "path", s.DataPath(), "id", id, "err", err)
		return nil
	}
	return row
}

// offset looks up the data file offset of id in the index.
func (s *Store[T]) offset(id int64) (int64, bool) {
	f, err := os.Open(s.IndexPath())
	if err != nil {
		return 0, false
	}
	defer func() {
		_ = f.Close()
	}()
	var hdr [1]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return 0, false
	}
	if !validWidth(hdr[0]) {
		return 0, false
	}
	w := int64(hdr[0])
	var slot [4]byte
	if _, err := f.ReadAt(slot[:w], 1+id*w); err != nil {
		return 0, false
	}
	return decodeSlot(slot[:w], int(w))
}

// Width returns the slot width recorded in the index header.
func (s *Store[T]) Width() (int, error) {
	f, err := os.Open(s.IndexPath())
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()
	var hdr [1]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, fmt.Errorf("failed to read index header: %w", err)
	}
	if !validWidth(hdr[0]) {
		return 0, fmt.Errorf("%w: %d", errBadWidth, hdr[0])
	}
	return int(hdr[0]), nil
}

// GenerateIndex rebuilds the index file from the current data file.
//
// The new index is written through scratch and only replaces the previous one
// once the whole data file has been scanned. Cancellation and errors leave the
// previous index untouched.
func (s *Store[T]) GenerateIndex(ctx context.Context, scratch Scratch) error {
	buf, err := buildIndex(ctx, s.DataPath())
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", s.name, err)
	}
	if err := scratch.ReplaceBytes(s.IndexPath(), buf); err != nil {
		return fmt.Errorf("failed to write index of %s: %w", s.name, err)
	}
	slog.DebugContext(ctx, "Indexed", "store", s.name, "width", int(buf[0]), "slots", (len(buf)-1)/int(buf[0]))
	return nil
}

// Fork returns a store descriptor for another location without touching the
// filesystem.
func (s *Store[T]) Fork(dir, name string) *Store[T] {
	return &Store[T]{dir: dir, name: name}
}

// Move renames the data and index files to dir/name and rebinds the store to
// the new location. Missing files are skipped.
//
// The index is moved last so that readers of the destination never pair a
// stale data file with a fresh index for longer than the two renames. Move
// must not be called concurrently with other methods of the same Store.
func (s *Store[T]) Move(dir, name string) error {
	dst := s.Fork(dir, name)
	if fileExists(s.DataPath()) {
		if err := os.Rename(s.DataPath(), dst.DataPath()); err != nil {
			return fmt.Errorf("failed to move %s: %w", s.DataPath(), err)
		}
	}
	if fileExists(s.IndexPath()) {
		if err := os.Rename(s.IndexPath(), dst.IndexPath()); err != nil {
			return fmt.Errorf("failed to move %s: %w", s.IndexPath(), err)
		}
	}
	s.dir = dir
	s.name = name
	return nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

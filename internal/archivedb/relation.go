// Provides lazily loaded one-to-many relation maps persisted in binary files.

package archivedb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
)

// RelationExt is the extension of relation files.
const RelationExt = ".map"

var errNotLoaded = errors.New("archivedb: relation not loaded")

// Relation maps a key id to the list of values related to it.
//
// The map is derived from a snapshot with [Relation.Build], persisted with
// [Relation.Save] and read back lazily, once, on the first query. Values are
// bare ids (optionally qualified by a type code); resolving them to records is
// left to the caller so that entity updates do not require a rebuild here.
//
// All methods are safe for concurrent use.
type Relation[V any] struct {
	path  string
	codec codec[V]

	mu   sync.Mutex // serializes Load and Reset
	data atomic.Pointer[map[int32][]V]
}

// NewPairs returns a relation whose values carry a relation type code.
func NewPairs(path string) *Relation[Member] {
	return &Relation[Member]{path: path, codec: pairCodec{}}
}

// NewGrouped returns a relation whose values are bare ids stored as groups.
func NewGrouped(path string) *Relation[int32] {
	return &Relation[int32]{path: path, codec: groupCodec{}}
}

// Path returns the relation file path.
func (r *Relation[V]) Path() string {
	return r.path
}

// Fork returns an empty, unloaded relation of the same format stored in dir
// under the same base name. The filesystem is not touched.
func (r *Relation[V]) Fork(dir string) *Relation[V] {
	return &Relation[V]{path: filepath.Join(dir, filepath.Base(r.path)), codec: r.codec}
}

// Move renames the relation file to dst and rebinds the relation to it. A
// missing file is skipped. Move must not be called concurrently with other
// methods of the same Relation.
func (r *Relation[V]) Move(dst string) error {
	if fileExists(r.path) {
		if err := os.Rename(r.path, dst); err != nil {
			return fmt.Errorf("failed to move %s: %w", r.path, err)
		}
	}
	r.path = dst
	return nil
}

// Load reads the relation file into memory if it was not loaded yet.
//
// Concurrent first callers wait for a single read. A missing file yields an
// empty relation and counts as loaded. On error the relation stays unloaded so
// that a later call can retry.
func (r *Relation[V]) Load() error {
	if r.data.Load() != nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data.Load() != nil {
		return nil
	}
	m := make(map[int32][]V)
	f, err := os.Open(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to open relation file: %w", err)
		}
	} else {
		defer func() {
			_ = f.Close()
		}()
		if err := r.codec.decode(bufio.NewReaderSize(f, 1<<16), m); err != nil {
			return fmt.Errorf("failed to load %s: %w", r.path, err)
		}
	}
	r.data.Store(&m)
	return nil
}

// Reset drops the in-memory map; the next query loads the file again.
func (r *Relation[V]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Store(nil)
}

func (r *Relation[V]) loaded() map[int32][]V {
	if err := r.Load(); err != nil {
		slog.Warn("Failed to load relation", "path", r.path, "err", err)
		return nil
	}
	if p := r.data.Load(); p != nil {
		return *p
	}
	return nil
}

// Ready loads the relation and returns true if it holds at least one key.
func (r *Relation[V]) Ready() bool {
	return len(r.loaded()) != 0
}

// Len returns the number of keys.
func (r *Relation[V]) Len() int {
	return len(r.loaded())
}

// Get returns a copy of the values related to key, in source order. An
// unknown key yields an empty list.
func (r *Relation[V]) Get(key int32) []V {
	return slices.Clone(r.loaded()[key])
}

// Build replaces the in-memory map with the pairs read from src.
//
// The context is checked before each pair; a cancelled build returns the
// context error and leaves the current map untouched. Build does not write the
// relation file, see [Relation.Save] and [Relation.GenerateIndex].
func (r *Relation[V]) Build(ctx context.Context, src Source[V]) error {
	m := make(map[int32][]V)
	count := 0
	progress := NewProgress()
	var ctxErr error
	err := src(func(key int32, v V) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		m[key] = append(m[key], v)
		count++
		progress.Do(func() {
			slog.InfoContext(ctx, "Building relation", "path", r.path, "pairs", count)
		})
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", r.path, err)
	}
	if ctxErr != nil {
		return ctxErr
	}
	r.mu.Lock()
	r.data.Store(&m)
	r.mu.Unlock()
	slog.DebugContext(ctx, "Built relation", "path", r.path, "keys", len(m), "pairs", count)
	return nil
}

// Save writes the in-memory map to the relation file through scratch.
//
// Keys are written in ascending order. The previous file is first hard-linked
// into the scratch directory so that it remains available until the scratch
// directory is purged.
func (r *Relation[V]) Save(scratch Scratch) error {
	p := r.data.Load()
	if p == nil {
		return errNotLoaded
	}
	m := *p
	if _, err := scratch.SetAside(r.path); err != nil {
		return err
	}
	return scratch.Replace(r.path, func(w io.Writer) error {
		for _, key := range slices.Sorted(maps.Keys(m)) {
			if err := r.codec.encode(w, key, m[key]); err != nil {
				return fmt.Errorf("failed to write %s: %w", r.path, err)
			}
		}
		return nil
	})
}

// GenerateIndex builds the relation from src and saves it.
func (r *Relation[V]) GenerateIndex(ctx context.Context, src Source[V], scratch Scratch) error {
	if err := r.Build(ctx, src); err != nil {
		return err
	}
	return r.Save(scratch)
}

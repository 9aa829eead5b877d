package archivedb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
)

type kv[V any] struct {
	k int32
	v V
}

type (
	kid     = kv[int32]
	kmember = kv[Member]
)

// pairs returns a Source over a fixed list of pairs.
func pairs[V any](items ...kv[V]) Source[V] {
	return func(yield func(int32, V) bool) error {
		for _, p := range items {
			if !yield(p.k, p.v) {
				return nil
			}
		}
		return nil
	}
}

func newTestGrouped(t *testing.T) (*Relation[int32], Scratch) {
	t.Helper()
	dir := t.TempDir()
	return NewGrouped(filepath.Join(dir, "test"+RelationExt)), NewScratch(filepath.Join(dir, ScratchDirName))
}

func TestRelation(t *testing.T) {
	t.Run("Grouped", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		src := pairs(kid{10, 100}, kid{20, 200}, kid{10, 101})
		if err := r.GenerateIndex(t.Context(), src, scratch); err != nil {
			t.Fatalf("GenerateIndex failed: %v", err)
		}

		fresh := NewGrouped(r.Path())
		tests := []struct {
			key  int32
			want []int32
		}{
			{10, []int32{100, 101}},
			{20, []int32{200}},
			{99, nil},
		}
		for _, tt := range tests {
			if got := fresh.Get(tt.key); !slices.Equal(got, tt.want) {
				t.Errorf("Get(%d) = %v, want %v", tt.key, got, tt.want)
			}
		}
		if !fresh.Ready() {
			t.Error("Ready() = false")
		}
		if got := fresh.Len(); got != 2 {
			t.Errorf("Len() = %d, want 2", got)
		}

		raw, err := os.ReadFile(r.Path())
		if err != nil {
			t.Fatal(err)
		}
		want := []byte{
			10, 0, 0, 0, 2, 0, 100, 0, 0, 0, 101, 0, 0, 0,
			20, 0, 0, 0, 1, 0, 200, 0, 0, 0,
		}
		if !slices.Equal(raw, want) {
			t.Errorf("file = %v, want %v", raw, want)
		}
	})

	t.Run("Pairs", func(t *testing.T) {
		dir := t.TempDir()
		r := NewPairs(filepath.Join(dir, "test"+RelationExt))
		src := pairs(
			kmember{7, Member{ID: 3, Type: 1}},
			kmember{-1, Member{ID: -5, Type: -2}},
			kmember{7, Member{ID: 1, Type: 1003}},
		)
		if err := r.GenerateIndex(t.Context(), src, NewScratch(filepath.Join(dir, ScratchDirName))); err != nil {
			t.Fatalf("GenerateIndex failed: %v", err)
		}
		fi, err := os.Stat(r.Path())
		if err != nil {
			t.Fatal(err)
		}
		if fi.Size() != 3*pairSize {
			t.Errorf("file size = %d, want %d", fi.Size(), 3*pairSize)
		}
		fresh := NewPairs(r.Path())
		if got, want := fresh.Get(7), []Member{{3, 1}, {1, 1003}}; !slices.Equal(got, want) {
			t.Errorf("Get(7) = %v, want %v", got, want)
		}
		if got, want := fresh.Get(-1), []Member{{-5, -2}}; !slices.Equal(got, want) {
			t.Errorf("Get(-1) = %v, want %v", got, want)
		}
	})

	t.Run("large group", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		const n = 70000
		src := Source[int32](func(yield func(int32, int32) bool) error {
			for i := range int32(n) {
				if !yield(1, n-i) {
					return nil
				}
			}
			return nil
		})
		if err := r.GenerateIndex(t.Context(), src, scratch); err != nil {
			t.Fatal(err)
		}
		got := NewGrouped(r.Path()).Get(1)
		if len(got) != n {
			t.Fatalf("len(Get(1)) = %d, want %d", len(got), n)
		}
		if got[0] != n || got[n-1] != 1 {
			t.Errorf("order not preserved: first %d, last %d", got[0], got[n-1])
		}
		fi, err := os.Stat(r.Path())
		if err != nil {
			t.Fatal(err)
		}
		if want := int64(2*6 + n*4); fi.Size() != want {
			t.Errorf("file size = %d, want %d", fi.Size(), want)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		r := NewGrouped(filepath.Join(t.TempDir(), "missing"+RelationExt))
		if r.Ready() {
			t.Error("Ready() = true")
		}
		if got := r.Get(1); len(got) != 0 {
			t.Errorf("Get(1) = %v, want empty", got)
		}
		if err := r.Load(); err != nil {
			t.Errorf("Load() = %v, want nil", err)
		}
	})

	t.Run("loads once", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		if err := r.GenerateIndex(t.Context(), pairs(kid{1, 2}), scratch); err != nil {
			t.Fatal(err)
		}
		fresh := NewGrouped(r.Path())
		first := fresh.Get(1)
		if err := os.Remove(r.Path()); err != nil {
			t.Fatal(err)
		}
		if got := fresh.Get(1); !slices.Equal(got, first) {
			t.Errorf("Get(1) after delete = %v, want %v", got, first)
		}

		fresh.Reset()
		if got := fresh.Get(1); len(got) != 0 {
			t.Errorf("Get(1) after Reset = %v, want empty", got)
		}
	})

	t.Run("concurrent first access", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		if err := r.GenerateIndex(t.Context(), pairs(kid{1, 2}, kid{1, 3}), scratch); err != nil {
			t.Fatal(err)
		}
		fresh := NewGrouped(r.Path())
		var wg sync.WaitGroup
		results := make([][]int32, 16)
		for i := range results {
			wg.Go(func() {
				results[i] = fresh.Get(1)
			})
		}
		wg.Wait()
		for i, got := range results {
			if !slices.Equal(got, []int32{2, 3}) {
				t.Errorf("goroutine %d: Get(1) = %v", i, got)
			}
		}
	})

	t.Run("Get returns a copy", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		if err := r.GenerateIndex(t.Context(), pairs(kid{1, 2}), scratch); err != nil {
			t.Fatal(err)
		}
		r.Get(1)[0] = 42
		if got := r.Get(1); got[0] != 2 {
			t.Errorf("Get(1) = %v, internal state was modified", got)
		}
	})

	t.Run("truncated file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "test"+RelationExt)
		if err := os.WriteFile(path, []byte{1, 0, 0, 0, 2, 0, 5, 0, 0, 0}, 0o600); err != nil {
			t.Fatal(err)
		}
		r := NewGrouped(path)
		if err := r.Load(); err == nil {
			t.Error("Load() succeeded on truncated file")
		}
		if got := r.Get(1); len(got) != 0 {
			t.Errorf("Get(1) = %v, want empty", got)
		}
		// Still unloaded: fixing the file makes it visible.
		if err := os.WriteFile(path, []byte{1, 0, 0, 0, 1, 0, 5, 0, 0, 0}, 0o600); err != nil {
			t.Fatal(err)
		}
		if got := r.Get(1); !slices.Equal(got, []int32{5}) {
			t.Errorf("Get(1) after repair = %v, want [5]", got)
		}
	})

	t.Run("Save without data", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		if err := r.Save(scratch); !errors.Is(err, errNotLoaded) {
			t.Errorf("Save() = %v, want errNotLoaded", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		if err := r.GenerateIndex(t.Context(), pairs(kid{1, 2}), scratch); err != nil {
			t.Fatal(err)
		}
		old, err := os.ReadFile(r.Path())
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if err := r.GenerateIndex(ctx, pairs(kid{3, 4}), scratch); !errors.Is(err, context.Canceled) {
			t.Errorf("GenerateIndex() = %v, want context.Canceled", err)
		}
		got, err := os.ReadFile(r.Path())
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, old) {
			t.Errorf("file = %v, want %v", got, old)
		}
		if got := r.Get(1); !slices.Equal(got, []int32{2}) {
			t.Errorf("Get(1) = %v, want [2]", got)
		}
	})

	t.Run("source error", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		boom := errors.New("boom")
		src := Source[int32](func(func(int32, int32) bool) error { return boom })
		if err := r.GenerateIndex(t.Context(), src, scratch); !errors.Is(err, boom) {
			t.Errorf("GenerateIndex() = %v, want %v", err, boom)
		}
		if fileExists(r.Path()) {
			t.Error("relation file written despite error")
		}
	})

	t.Run("crash before rename", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		if err := r.GenerateIndex(t.Context(), pairs(kid{1, 2}), scratch); err != nil {
			t.Fatal(err)
		}
		old, err := os.ReadFile(r.Path())
		if err != nil {
			t.Fatal(err)
		}
		simulateCrash(t)
		if err := r.GenerateIndex(t.Context(), pairs(kid{5, 6}, kid{7, 8}), scratch); err == nil {
			t.Fatal("GenerateIndex() succeeded despite crash")
		}
		got, err := os.ReadFile(r.Path())
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, old) {
			t.Errorf("file = %v, want previous version %v", got, old)
		}
		if got := NewGrouped(r.Path()).Get(1); !slices.Equal(got, []int32{2}) {
			t.Errorf("Get(1) = %v, want [2]", got)
		}
	})

	t.Run("previous version set aside", func(t *testing.T) {
		r, scratch := newTestGrouped(t)
		if err := r.GenerateIndex(t.Context(), pairs(kid{1, 2}), scratch); err != nil {
			t.Fatal(err)
		}
		if n := countFiles(t, scratch.Dir(), ".old"); n != 0 {
			t.Errorf("%d set-aside files after first save, want 0", n)
		}
		if err := r.GenerateIndex(t.Context(), pairs(kid{3, 4}), scratch); err != nil {
			t.Fatal(err)
		}
		entries, err := os.ReadDir(scratch.Dir())
		if err != nil {
			t.Fatal(err)
		}
		var aside string
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".old") {
				aside = filepath.Join(scratch.Dir(), e.Name())
			}
		}
		if aside == "" {
			t.Fatal("no set-aside file")
		}
		if got := NewGrouped(aside).Get(1); !slices.Equal(got, []int32{2}) {
			t.Errorf("set-aside Get(1) = %v, want [2]", got)
		}
		if got := NewGrouped(r.Path()).Get(3); !slices.Equal(got, []int32{4}) {
			t.Errorf("Get(3) = %v, want [4]", got)
		}
	})

	t.Run("Fork and Move", func(t *testing.T) {
		live, scratch := newTestGrouped(t)
		if err := live.GenerateIndex(t.Context(), pairs(kid{1, 2}), scratch); err != nil {
			t.Fatal(err)
		}
		staging, err := scratch.NewStagingDir()
		if err != nil {
			t.Fatal(err)
		}
		next := live.Fork(staging)
		if want := filepath.Join(staging, filepath.Base(live.Path())); next.Path() != want {
			t.Errorf("Fork().Path() = %q, want %q", next.Path(), want)
		}
		if next.Ready() {
			t.Error("forked relation is not empty")
		}
		if err := next.GenerateIndex(t.Context(), pairs(kid{3, 4}), scratch); err != nil {
			t.Fatal(err)
		}
		// The staged file is not visible until moved.
		if got := NewGrouped(live.Path()).Get(3); len(got) != 0 {
			t.Errorf("Get(3) before Move = %v, want empty", got)
		}
		if err := next.Move(live.Path()); err != nil {
			t.Fatalf("Move failed: %v", err)
		}
		if next.Path() != live.Path() {
			t.Errorf("Path() after Move = %q, want %q", next.Path(), live.Path())
		}
		live.Reset()
		if got := live.Get(3); !slices.Equal(got, []int32{4}) {
			t.Errorf("Get(3) after Move = %v, want [4]", got)
		}
		if got := live.Get(1); len(got) != 0 {
			t.Errorf("Get(1) after Move = %v, want empty", got)
		}

		t.Run("missing file", func(t *testing.T) {
			r := NewGrouped(filepath.Join(t.TempDir(), "nope"+RelationExt))
			if err := r.Move(filepath.Join(t.TempDir(), "dst"+RelationExt)); err != nil {
				t.Errorf("Move() = %v, want nil", err)
			}
		})
	})
}

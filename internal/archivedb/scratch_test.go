package archivedb

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScratch(t *testing.T) {
	t.Run("Replace", func(t *testing.T) {
		dir := t.TempDir()
		s := NewScratch(filepath.Join(dir, ScratchDirName))
		dst := filepath.Join(dir, "out")
		if err := s.ReplaceBytes(dst, []byte("v1")); err != nil {
			t.Fatal(err)
		}
		if err := s.ReplaceBytes(dst, []byte("v2")); err != nil {
			t.Fatal(err)
		}
		if got, _ := os.ReadFile(dst); string(got) != "v2" {
			t.Errorf("content = %q, want v2", got)
		}
		if n := countFiles(t, s.Dir(), ".tmp"); n != 0 {
			t.Errorf("%d temp files left", n)
		}
	})

	t.Run("Replace write error", func(t *testing.T) {
		dir := t.TempDir()
		s := NewScratch(filepath.Join(dir, ScratchDirName))
		dst := filepath.Join(dir, "out")
		if err := s.ReplaceBytes(dst, []byte("v1")); err != nil {
			t.Fatal(err)
		}
		boom := errors.New("boom")
		err := s.Replace(dst, func(w io.Writer) error {
			_, _ = w.Write([]byte("partial"))
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Replace() = %v, want %v", err, boom)
		}
		if got, _ := os.ReadFile(dst); string(got) != "v1" {
			t.Errorf("content = %q, want v1", got)
		}
		if n := countFiles(t, s.Dir(), ".tmp"); n != 0 {
			t.Errorf("%d temp files left", n)
		}
	})

	t.Run("SetAside", func(t *testing.T) {
		dir := t.TempDir()
		s := NewScratch(filepath.Join(dir, ScratchDirName))
		got, err := s.SetAside(filepath.Join(dir, "missing"))
		if err != nil || got != "" {
			t.Errorf("SetAside(missing) = (%q, %v), want empty", got, err)
		}
		src := filepath.Join(dir, "file.map")
		if err := os.WriteFile(src, []byte("old"), 0o600); err != nil {
			t.Fatal(err)
		}
		aside, err := s.SetAside(src)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(filepath.Base(aside), "file.map.") || !strings.HasSuffix(aside, ".old") {
			t.Errorf("aside = %q", aside)
		}
		if err := s.ReplaceBytes(src, []byte("new")); err != nil {
			t.Fatal(err)
		}
		if b, _ := os.ReadFile(aside); string(b) != "old" {
			t.Errorf("aside content = %q, want old", b)
		}
	})

	t.Run("Purge", func(t *testing.T) {
		dir := t.TempDir()
		s := NewScratch(filepath.Join(dir, ScratchDirName))
		if err := s.Purge(); err != nil {
			t.Errorf("Purge() on missing dir = %v", err)
		}
		staging, err := s.NewStagingDir()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(staging, "subject.jsonlines"), nil, 0o600); err != nil {
			t.Fatal(err)
		}
		for _, name := range []string{"a.tmp", "b.map.x.old", "keep.txt"} {
			if err := os.WriteFile(filepath.Join(s.Dir(), name), nil, 0o600); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.Purge(); err != nil {
			t.Fatal(err)
		}
		entries, err := os.ReadDir(s.Dir())
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name() != "keep.txt" {
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			t.Errorf("entries after Purge = %v, want [keep.txt]", names)
		}
	})
}

func TestDecodeLines(t *testing.T) {
	byName := func(r *testRow) (int32, string, bool) {
		return int32(r.ID), r.Name, r.Name != ""
	}
	collect := func(src Source[string]) ([]string, error) {
		var out []string
		err := src(func(k int32, v string) bool {
			out = append(out, v)
			return true
		})
		return out, err
	}

	t.Run("valid", func(t *testing.T) {
		in := "{\"id\":1,\"name\":\"a\"}\n\n  \n{\"id\":2}\n{\"id\":3,\"name\":\"c\"}"
		got, err := collect(DecodeLines(strings.NewReader(in), byName))
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got, ",") != "a,c" {
			t.Errorf("got %v, want [a c]", got)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		in := "{\"id\":1,\"name\":\"a\"}\nnope\n"
		_, err := collect(DecodeLines(strings.NewReader(in), byName))
		if err == nil || !strings.Contains(err.Error(), "line 2") {
			t.Errorf("err = %v, want a line 2 error", err)
		}
	})

	t.Run("early stop", func(t *testing.T) {
		in := "{\"id\":1,\"name\":\"a\"}\n{\"id\":2,\"name\":\"b\"}\n"
		n := 0
		err := DecodeLines(strings.NewReader(in), byName)(func(int32, string) bool {
			n++
			return false
		})
		if err != nil || n != 1 {
			t.Errorf("got (%d, %v), want (1, nil)", n, err)
		}
	})

	t.Run("long line", func(t *testing.T) {
		name := strings.Repeat("z", 200<<10)
		in := "{\"id\":1,\"name\":\"" + name + "\"}\n"
		got, err := collect(DecodeLines(strings.NewReader(in), byName))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != name {
			t.Error("long line not decoded")
		}
	})

	t.Run("FromSeq", func(t *testing.T) {
		s := writeData(t, t.TempDir(), "test", rowLine(1, "a"), rowLine(2, ""), rowLine(3, "c"))
		got, err := collect(FromSeq(s.All(), byName))
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got, ",") != "a,c" {
			t.Errorf("got %v, want [a c]", got)
		}
	})
}

// Implements write-to-temp-then-rename replacement of on-disk artifacts.

package archivedb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/ksid"
)

// ScratchDirName is the name of the staging directory inside a snapshot root.
const ScratchDirName = "tmp"

// rename is swapped out by tests to simulate a crash before the final rename.
var rename = os.Rename

// Scratch is a directory used exclusively to stage files before they are
// renamed into their final location.
//
// The scratch directory must live on the same filesystem as the destinations
// so that the rename is atomic. Its content is transient and can be purged
// between runs with [Scratch.Purge].
type Scratch struct {
	dir string
}

// NewScratch returns a Scratch rooted at dir. The directory is created lazily.
func NewScratch(dir string) Scratch {
	return Scratch{dir: dir}
}

// Dir returns the scratch directory.
func (s Scratch) Dir() string {
	return s.dir
}

// Replace writes a new version of dst through fn and renames it over dst.
//
// Readers opening dst concurrently observe either the previous complete file
// or the new complete file. If fn fails, the temporary file is removed and dst
// is untouched. If the rename fails, the temporary file is left behind for
// diagnostics.
func (s Scratch) Replace(dst string, fn func(w io.Writer) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	f, err := os.CreateTemp(s.dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	w := bufio.NewWriterSize(f, 1<<16)
	if err := fn(w); err != nil {
		return errors.Join(err, f.Close(), os.Remove(tmpPath))
	}
	if err := w.Flush(); err != nil {
		return errors.Join(fmt.Errorf("failed to flush %s: %w", tmpPath, err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync %s: %w", tmpPath, err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, dst, err)
	}
	return nil
}

// ReplaceBytes is a shortcut for Replace with an in-memory payload.
func (s Scratch) ReplaceBytes(dst string, b []byte) error {
	return s.Replace(dst, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// SetAside hard-links the current version of path into the scratch directory
// so that it survives the next replacement until the scratch directory is
// purged. It returns the aside path, or "" if path does not exist.
func (s Scratch) SetAside(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	aside := filepath.Join(s.dir, filepath.Base(path)+"."+ksid.NewID().String()+".old")
	if err := os.Link(path, aside); err != nil {
		return "", fmt.Errorf("failed to set aside %s: %w", path, err)
	}
	return aside, nil
}

// NewStagingDir creates a fresh, uniquely named directory inside the scratch
// directory.
func (s Scratch) NewStagingDir() (string, error) {
	dir := filepath.Join(s.dir, "gen-"+ksid.NewID().String())
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}

// Purge removes every leftover temporary file, set-aside file and staging
// directory.
//
// Callers must ensure no build is in progress.
func (s Scratch) Purge() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read scratch directory: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		p := filepath.Join(s.dir, name)
		switch {
		case entry.IsDir() && strings.HasPrefix(name, "gen-"):
			if err := os.RemoveAll(p); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove staging directory %s: %w", name, err))
			}
		case !entry.IsDir() && (strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".old")):
			if err := os.Remove(p); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove temp file %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

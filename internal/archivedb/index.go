// Builds and decodes the sparse id -> byte offset index of a data file.

package archivedb

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
)

// tailWindow is how much of the end of a data file is read to estimate the
// largest id before the full pass.
const tailWindow = 64 << 10

// absent marks an id without a record while building. It is encoded as the
// all-ones value of the chosen slot width.
const absent = math.MaxUint32

var (
	// ErrNoID is returned when no record id can be found at the end of a data
	// file, which is then considered truncated or corrupt.
	ErrNoID = errors.New("archivedb: no record id in the tail of the data file")
	// ErrOffsetOverflow is returned when a data file is too large to be
	// addressed by a 4 byte index slot.
	ErrOffsetOverflow = errors.New("archivedb: data file too large to index")

	errBadWidth = errors.New("archivedb: unexpected index slot width")
)

// slotWidth returns the smallest slot width in bytes that can address maxID
// and hold maxOffset while keeping the all-ones sentinel free.
func slotWidth(maxID, maxOffset int64) int {
	for _, w := range [...]int{1, 2} {
		limit := int64(1) << (8 * w)
		if maxID < limit && maxOffset < limit-1 {
			return w
		}
	}
	return 4
}

// sentinel returns the absent marker for width w.
func sentinel(w int) uint32 {
	return uint32(uint64(1)<<(8*w) - 1)
}

func putSlot(b []byte, w int, v uint32) {
	if v == absent {
		v = sentinel(w)
	}
	switch w {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	default:
		binary.LittleEndian.PutUint32(b, v)
	}
}

// decodeSlot returns the offset stored in b, or false when the slot marks an
// absent id.
func decodeSlot(b []byte, w int) (int64, bool) {
	var v uint32
	switch w {
	case 1:
		v = uint32(b[0])
	case 2:
		v = uint32(binary.LittleEndian.Uint16(b))
	case 4:
		v = binary.LittleEndian.Uint32(b)
	default:
		return 0, false
	}
	if v == sentinel(w) {
		return 0, false
	}
	return int64(v), true
}

func validWidth(w byte) bool {
	return w == 1 || w == 2 || w == 4
}

// buildIndex scans the data file at path and returns the encoded index.
//
// The tail of the file is read first to size the slot table from the last id,
// then the whole file is scanned and the starting byte offset of every line
// carrying an id is recorded. The table grows if the file is not sorted by id.
func buildIndex(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is owned by the store
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat data file: %w", err)
	}

	start := max(fi.Size()-tailWindow, 0)
	tail := make([]byte, fi.Size()-start)
	if _, err := f.ReadAt(tail, start); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read tail of %s: %w", path, err)
	}
	hint, ok := lastID(tail, start > 0)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoID, path)
	}
	if hint >= absent {
		return nil, fmt.Errorf("archivedb: id %d out of range in %s", hint, path)
	}

	slots := make([]uint32, hint+1)
	for i := range slots {
		slots[i] = absent
	}
	maxID := int64(-1)
	var maxOffset, offset int64
	progress := NewProgress()
	r := bufio.NewReaderSize(f, 1<<16)
	for lines := 0; ; lines++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := readLine(r)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read %s at offset %d: %w", path, offset, err)
		}
		if id, ok := lineID(line); ok {
			if id >= absent {
				return nil, fmt.Errorf("archivedb: id %d out of range in %s", id, path)
			}
			if offset >= absent {
				return nil, fmt.Errorf("%w: %s", ErrOffsetOverflow, path)
			}
			for id >= int64(len(slots)) {
				n := len(slots)
				slots = append(slots, make([]uint32, max(int64(n), id+1-int64(n)))...)
				for i := n; i < len(slots); i++ {
					slots[i] = absent
				}
			}
			slots[id] = uint32(offset)
			maxID = max(maxID, id)
			maxOffset = max(maxOffset, offset)
		}
		offset += int64(len(line))
		if err != nil {
			break
		}
		progress.Do(func() {
			slog.InfoContext(ctx, "Indexing", "path", path, "lines", lines, "offset", offset)
		})
	}

	w := slotWidth(maxID, maxOffset)
	buf := make([]byte, 1+(maxID+1)*int64(w))
	buf[0] = byte(w)
	for i, v := range slots[:maxID+1] {
		putSlot(buf[1+i*w:], w, v)
	}
	return buf, nil
}

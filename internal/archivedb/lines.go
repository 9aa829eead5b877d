package archivedb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// readLine returns the next line of r including its trailing newline.
//
// The returned slice is only valid until the next call. At the end of input
// the last, possibly unterminated, line is returned along with io.EOF.
func readLine(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, chunk...)
			continue
		}
		if len(buf) == 0 {
			return chunk, err
		}
		return append(buf, chunk...), err
	}
}

// Source streams (key, value) pairs into a relation build. It returns the
// first error encountered by the underlying reader, if any.
type Source[V any] func(yield func(key int32, v V) bool) error

// DecodeLines returns a Source that decodes each non-blank JSON line of r into
// a T and maps it with fn. Lines for which fn returns false are skipped.
//
// Unlike [Store.All], a malformed line is an error: sources are only read while
// building, where a corrupt snapshot must abort the rebuild.
func DecodeLines[T, V any](r io.Reader, fn func(*T) (int32, V, bool)) Source[V] {
	return func(yield func(int32, V) bool) error {
		br := bufio.NewReaderSize(r, 1<<16)
		for lineNo := 1; ; lineNo++ {
			line, err := readLine(br)
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to read line %d: %w", lineNo, err)
			}
			if trimmed := bytes.TrimSpace(line); len(trimmed) != 0 {
				var row T
				if err2 := json.Unmarshal(trimmed, &row); err2 != nil {
					return fmt.Errorf("failed to unmarshal line %d: %w", lineNo, err2)
				}
				if key, v, ok := fn(&row); ok && !yield(key, v) {
					return nil
				}
			}
			if err != nil {
				return nil
			}
		}
	}
}

// FromSeq returns a Source that maps the records of seq with fn, typically
// over [Store.All]. Records for which fn returns false are skipped.
func FromSeq[T, V any](seq iter.Seq[*T], fn func(*T) (int32, V, bool)) Source[V] {
	return func(yield func(int32, V) bool) error {
		for row := range seq {
			if key, v, ok := fn(row); ok && !yield(key, v) {
				return nil
			}
		}
		return nil
	}
}

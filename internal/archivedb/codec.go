// Fixed-width binary encodings of relation files.

package archivedb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Member is a related entity id qualified by a relation type code.
type Member struct {
	ID   int32 `json:"id"`
	Type int16 `json:"type"`
}

// codec encodes the values of one key and decodes a whole relation file.
type codec[V any] interface {
	encode(w io.Writer, key int32, vs []V) error
	decode(r *bufio.Reader, m map[int32][]V) error
}

// pairCodec stores one (key int32, id int32, type int16) triple per value.
type pairCodec struct{}

const pairSize = 10

func (pairCodec) encode(w io.Writer, key int32, vs []Member) error {
	var b [pairSize]byte
	binary.LittleEndian.PutUint32(b[0:], uint32(key))
	for _, v := range vs {
		binary.LittleEndian.PutUint32(b[4:], uint32(v.ID))
		binary.LittleEndian.PutUint16(b[8:], uint16(v.Type))
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

func (pairCodec) decode(r *bufio.Reader, m map[int32][]Member) error {
	var b [pairSize]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read relation triple: %w", err)
		}
		key := int32(binary.LittleEndian.Uint32(b[0:]))
		m[key] = append(m[key], Member{
			ID:   int32(binary.LittleEndian.Uint32(b[4:])),
			Type: int16(binary.LittleEndian.Uint16(b[8:])),
		})
	}
}

// groupCodec stores (key int32, count uint16) followed by count int32 ids.
// Lists longer than what count can hold are split into several groups.
type groupCodec struct{}

func (groupCodec) encode(w io.Writer, key int32, vs []int32) error {
	var b [6]byte
	binary.LittleEndian.PutUint32(b[0:], uint32(key))
	for len(vs) > 0 {
		n := min(len(vs), math.MaxUint16)
		binary.LittleEndian.PutUint16(b[4:], uint16(n))
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, vs[:n]); err != nil {
			return err
		}
		vs = vs[n:]
	}
	return nil
}

func (groupCodec) decode(r *bufio.Reader, m map[int32][]int32) error {
	var b [6]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read relation group header: %w", err)
		}
		key := int32(binary.LittleEndian.Uint32(b[0:]))
		n := int(binary.LittleEndian.Uint16(b[4:]))
		ids := make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
			return fmt.Errorf("failed to read relation group %d: %w", key, err)
		}
		m[key] = append(m[key], ids...)
	}
}

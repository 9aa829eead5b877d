// Package archivedb stores an immutable catalog snapshot as flat files.
//
// # Overview
//
// [Store] keeps one entity type in a JSONL data file, one record per line,
// next to a sparse index file mapping a record id to the byte offset of its
// line. Lookups by id cost two small reads and never load the data file in
// memory.
//
// [Relation] keeps a one-to-many map between entity ids in a compact binary
// file. It is built once from a streaming [Source] and loaded lazily in memory
// on first query.
//
// # Index File Format
//
// Byte 0 is the slot width w (1, 2 or 4). It is followed by one slot per id
// from 0 to the largest id, slot i holding the little-endian byte offset of the
// line whose id is i. An id without a record holds the all-ones value of w
// bytes. w is the smallest width able to address both the largest id and the
// largest offset.
//
// # Relation File Format
//
// Pairs: repeated (key int32, id int32, type int16), little-endian.
// Groups: repeated (key int32, count uint16, id int32 × count), little-endian.
//
// # Durability
//
// Files are never modified in place. Every artifact is written in a [Scratch]
// directory and renamed over its destination, so readers observe either the
// previous generation or the new one. A snapshot is replaced wholesale by
// building a new generation next to the current one and swapping it in.
package archivedb

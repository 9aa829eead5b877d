package archivedb

import (
	"bytes"

	"github.com/buger/jsonparser"
)

// lineID extracts the top-level "id" of a JSON line without decoding the
// whole record. It returns false for blank lines, partial writes and records
// without a non-negative integer id.
func lineID(line []byte) (int64, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return 0, false
	}
	id, err := jsonparser.GetInt(line, "id")
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// lastID returns the id of the last well-formed line in tail. When partial is
// true, the first line of tail is assumed to be cut and is ignored.
func lastID(tail []byte, partial bool) (int64, bool) {
	if partial {
		i := bytes.IndexByte(tail, '\n')
		if i < 0 {
			return 0, false
		}
		tail = tail[i+1:]
	}
	for len(tail) > 0 {
		i := bytes.LastIndexByte(bytes.TrimRight(tail, "\r\n"), '\n')
		line := tail[i+1:]
		if id, ok := lineID(line); ok {
			return id, true
		}
		if i < 0 {
			break
		}
		tail = tail[:i]
	}
	return 0, false
}

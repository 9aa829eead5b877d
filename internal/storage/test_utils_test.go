package storage

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// writeZip writes a snapshot zip holding one member per entry of members,
// keyed by member path.
func writeZip(t *testing.T, path string, members map[string][]string) {
	t.Helper()
	f, err := os.Create(path) //nolint:gosec // G304: test path
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, name := range slices.Sorted(maps.Keys(members)) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := w.Write([]byte(strings.Join(members[name], "\n") + "\n")); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close zip file: %v", err)
	}
}

// snapshot returns the members of a small but complete snapshot.
func snapshot() map[string][]string {
	return map[string][]string{
		"dump/subject.jsonlines": {
			`{"id":1,"type":2,"name":"Alpha","name_cn":"A","tags":[{"name":"tv","count":3}]}`,
			`{"id":3,"type":2,"name":"Gamma"}`,
		},
		"dump/episode.jsonlines": {
			`{"id":10,"subject_id":1,"type":0,"name":"second","sort":2}`,
			`{"id":11,"subject_id":1,"type":0,"name":"first","sort":1}`,
			`{"id":12,"subject_id":1,"type":1,"name":"special","sort":1}`,
			`{"id":20,"subject_id":3,"type":0,"name":"pilot","sort":1}`,
		},
		"dump/person.jsonlines": {
			`{"id":5,"name":"Director Person","type":1,"career":["director"]}`,
		},
		"dump/character.jsonlines": {
			`{"id":7,"role":1,"name":"Hero"}`,
		},
		"dump/subject-persons.jsonlines": {
			`{"person_id":5,"subject_id":1,"position":2}`,
			`{"person_id":6,"subject_id":1,"position":999}`,
		},
		"dump/subject-relations.jsonlines": {
			`{"subject_id":1,"relation_type":3,"related_subject_id":3,"order":0}`,
			`{"subject_id":3,"relation_type":2,"related_subject_id":1,"order":0}`,
		},
		"dump/subject-characters.jsonlines": {
			`{"character_id":7,"subject_id":1,"type":1,"order":0}`,
		},
	}
}

// rebuiltArchive returns an archive in a fresh directory ingested from
// members.
func rebuiltArchive(t *testing.T, members map[string][]string) *Archive {
	t.Helper()
	dir := t.TempDir()
	a, err := Open(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	zipPath := filepath.Join(dir, "archive.zip")
	writeZip(t, zipPath, members)
	if err := a.Rebuild(t.Context(), zipPath, RebuildOptions{}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	return a
}

// Package storage owns the on-disk archive of a data directory and answers
// catalog queries against it.
package storage

import (
	"cmp"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/maruel/bgmarchive/internal/archivedb"
	"github.com/maruel/bgmarchive/internal/models"
)

// Entity store names.
const (
	SubjectStore   = "subject"
	EpisodeStore   = "episode"
	PersonStore    = "person"
	CharacterStore = "character"
)

// Relation names; each is persisted as <name>.map.
const (
	SubjectEpisodes   = "subject-episodes"
	SubjectPersons    = "subject-persons"
	SubjectRelations  = "subject-relations"
	SubjectCharacters = "subject-characters"
)

var (
	archivesMu sync.Mutex
	archives   = map[string]*Archive{}
)

// Archive is the set of entity stores and relation maps of one root
// directory.
//
// Queries never fail: a missing store, relation or record yields nil or an
// empty list. All methods are safe for concurrent use.
type Archive struct {
	root    string
	scratch archivedb.Scratch

	subjects   *archivedb.Store[models.Subject]
	episodes   *archivedb.Store[models.Episode]
	persons    *archivedb.Store[models.Person]
	characters *archivedb.Store[models.Character]

	subjectEpisodes   *archivedb.Relation[int32]
	subjectPersons    *archivedb.Relation[archivedb.Member]
	subjectRelations  *archivedb.Relation[archivedb.Member]
	subjectCharacters *archivedb.Relation[archivedb.Member]
}

// Open returns the Archive of root, creating the directory if needed.
//
// There is a single instance per absolute root path in a process so that every
// caller shares the same lazily loaded relation maps.
func Open(root string) (*Archive, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	archivesMu.Lock()
	defer archivesMu.Unlock()
	if a := archives[abs]; a != nil {
		return a, nil
	}
	if err := os.MkdirAll(abs, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	rel := func(name string) string {
		return filepath.Join(abs, name+archivedb.RelationExt)
	}
	a := &Archive{
		root:              abs,
		scratch:           archivedb.NewScratch(filepath.Join(abs, archivedb.ScratchDirName)),
		subjects:          archivedb.NewStore[models.Subject](abs, SubjectStore),
		episodes:          archivedb.NewStore[models.Episode](abs, EpisodeStore),
		persons:           archivedb.NewStore[models.Person](abs, PersonStore),
		characters:        archivedb.NewStore[models.Character](abs, CharacterStore),
		subjectEpisodes:   archivedb.NewGrouped(rel(SubjectEpisodes)),
		subjectPersons:    archivedb.NewPairs(rel(SubjectPersons)),
		subjectRelations:  archivedb.NewPairs(rel(SubjectRelations)),
		subjectCharacters: archivedb.NewPairs(rel(SubjectCharacters)),
	}
	archives[abs] = a
	return a, nil
}

// Root returns the absolute root directory.
func (a *Archive) Root() string {
	return a.root
}

// Ready returns true once a snapshot has been ingested.
func (a *Archive) Ready() bool {
	return a.subjects.Exists() && a.episodes.Exists()
}

// Subject returns the subject with the given id, or nil.
func (a *Archive) Subject(id int64) *models.Subject {
	return a.subjects.Get(id)
}

// Episode returns the episode with the given id, or nil.
func (a *Archive) Episode(id int64) *models.Episode {
	return a.episodes.Get(id)
}

// Person returns the person with the given id, or nil.
func (a *Archive) Person(id int64) *models.Person {
	return a.persons.Get(id)
}

// Character returns the character with the given id, or nil.
func (a *Archive) Character(id int64) *models.Character {
	return a.characters.Get(id)
}

// Episodes returns the episodes of a subject ordered by type then position.
// Episodes listed in the relation but missing from the episode store are
// skipped.
func (a *Archive) Episodes(subjectID int64) []*models.Episode {
	key, ok := relationKey(subjectID)
	if !ok {
		return nil
	}
	ids := a.subjectEpisodes.Get(key)
	out := make([]*models.Episode, 0, len(ids))
	for _, id := range ids {
		if ep := a.episodes.Get(int64(id)); ep != nil {
			out = append(out, ep)
		}
	}
	slices.SortStableFunc(out, func(x, y *models.Episode) int {
		if c := cmp.Compare(x.Type, y.Type); c != 0 {
			return c
		}
		return cmp.Compare(x.Sort, y.Sort)
	})
	return out
}

// Persons returns the staff credited on a subject, in snapshot order.
func (a *Archive) Persons(subjectID int64) []models.RelatedPerson {
	key, ok := relationKey(subjectID)
	if !ok {
		return nil
	}
	members := a.subjectPersons.Get(key)
	out := make([]models.RelatedPerson, 0, len(members))
	for _, m := range members {
		rp := models.RelatedPerson{ID: m.ID, Position: m.Type, Label: models.PersonPositionLabel(m.Type)}
		if p := a.persons.Get(int64(m.ID)); p != nil {
			rp.Name = p.Name
		}
		out = append(out, rp)
	}
	return out
}

// Characters returns the characters appearing in a subject, in snapshot
// order.
func (a *Archive) Characters(subjectID int64) []models.RelatedCharacter {
	key, ok := relationKey(subjectID)
	if !ok {
		return nil
	}
	members := a.subjectCharacters.Get(key)
	out := make([]models.RelatedCharacter, 0, len(members))
	for _, m := range members {
		rc := models.RelatedCharacter{ID: m.ID, Type: m.Type, Label: models.CastTypeLabel(m.Type)}
		if c := a.characters.Get(int64(m.ID)); c != nil {
			rc.Name = c.Name
		}
		out = append(out, rc)
	}
	return out
}

// Related returns the subjects linked to a subject, in snapshot order.
func (a *Archive) Related(subjectID int64) []models.RelatedSubject {
	key, ok := relationKey(subjectID)
	if !ok {
		return nil
	}
	members := a.subjectRelations.Get(key)
	out := make([]models.RelatedSubject, 0, len(members))
	for _, m := range members {
		rs := models.RelatedSubject{ID: m.ID, Type: m.Type, Label: models.SubjectRelationLabel(m.Type)}
		if s := a.subjects.Get(int64(m.ID)); s != nil {
			rs.Name = s.Name
			rs.NameCN = s.NameCN
		}
		out = append(out, rs)
	}
	return out
}

// Status describes every store and relation of the archive.
func (a *Archive) Status() models.Status {
	st := models.Status{Root: a.root, Ready: a.Ready()}
	for _, s := range []interface {
		Name() string
		Exists() bool
		Width() (int, error)
	}{a.subjects, a.episodes, a.persons, a.characters} {
		ss := models.StoreStatus{Name: s.Name(), Ready: s.Exists()}
		if w, err := s.Width(); err == nil {
			ss.Width = w
		}
		st.Stores = append(st.Stores, ss)
	}
	st.Relations = []models.RelationStatus{
		{Name: SubjectEpisodes, Keys: a.subjectEpisodes.Len()},
		{Name: SubjectPersons, Keys: a.subjectPersons.Len()},
		{Name: SubjectRelations, Keys: a.subjectRelations.Len()},
		{Name: SubjectCharacters, Keys: a.subjectCharacters.Len()},
	}
	return st
}

// ResetRelations drops every cached relation map so that the next query reads
// the files on disk again. Call it after another process swapped in a new
// generation.
func (a *Archive) ResetRelations() {
	a.subjectEpisodes.Reset()
	a.subjectPersons.Reset()
	a.subjectRelations.Reset()
	a.subjectCharacters.Reset()
}

// relationKey narrows an entity id to the key width of relation files.
func relationKey(id int64) (int32, bool) {
	if id < 0 || id > math.MaxInt32 {
		return 0, false
	}
	return int32(id), true
}

// Package models defines the catalog records found in an archive snapshot and
// the shapes returned by queries.
package models

import "encoding/json"

// SubjectType is the kind of work a subject describes.
type SubjectType int

const (
	// SubjectBook is a novel, manga or other printed work.
	SubjectBook SubjectType = 1
	// SubjectAnime is an animated series or film.
	SubjectAnime SubjectType = 2
	// SubjectMusic is an album or single.
	SubjectMusic SubjectType = 3
	// SubjectGame is a video game.
	SubjectGame SubjectType = 4
	// SubjectReal is a live action production.
	SubjectReal SubjectType = 6
)

// Subject is a work: a series, a book, a game.
type Subject struct {
	ID       int64       `json:"id"`
	Type     SubjectType `json:"type"`
	Name     string      `json:"name"`
	NameCN   string      `json:"name_cn,omitempty"`
	Infobox  string      `json:"infobox,omitempty"` // Raw wiki template
	Platform int         `json:"platform,omitempty"`
	Summary  string      `json:"summary,omitempty"`
	NSFW     bool        `json:"nsfw,omitempty"`
	Tags     []Tag       `json:"tags,omitempty"`
	Score    float64     `json:"score,omitempty"`
	Rank     int         `json:"rank,omitempty"`
	Date     string      `json:"date,omitempty"` // YYYY-MM-DD, may be empty
	Series   bool        `json:"series,omitempty"`
	// Favorite holds the collection counters keyed by status (wish, done, ...).
	Favorite json.RawMessage `json:"favorite,omitempty"`
}

// Tag is a user supplied label with its vote count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// EpisodeType distinguishes regular episodes from specials.
type EpisodeType int

const (
	// EpisodeMain is a regular episode.
	EpisodeMain EpisodeType = 0
	// EpisodeSpecial is a special or OVA.
	EpisodeSpecial EpisodeType = 1
	// EpisodeOpening is an opening sequence.
	EpisodeOpening EpisodeType = 2
	// EpisodeEnding is an ending sequence.
	EpisodeEnding EpisodeType = 3
)

// Episode is one installment of a subject.
type Episode struct {
	ID          int64       `json:"id"`
	SubjectID   int64       `json:"subject_id"`
	Type        EpisodeType `json:"type"`
	Name        string      `json:"name"`
	NameCN      string      `json:"name_cn,omitempty"`
	Description string      `json:"description,omitempty"`
	Airdate     string      `json:"airdate,omitempty"`
	Disc        int         `json:"disc,omitempty"`
	Duration    string      `json:"duration,omitempty"`
	Sort        float64     `json:"sort"` // Position within the subject, may be fractional
}

// Person is a real person or company credited on subjects.
type Person struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Type     int      `json:"type"` // 1 individual, 2 company, 3 group
	Career   []string `json:"career,omitempty"`
	Infobox  string   `json:"infobox,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Comments int      `json:"comments,omitempty"`
	Collects int      `json:"collects,omitempty"`
}

// Character is a fictional character appearing in subjects.
type Character struct {
	ID       int64  `json:"id"`
	Role     int    `json:"role"` // 1 character, 2 mecha, 3 ship, 4 organization
	Name     string `json:"name"`
	Infobox  string `json:"infobox,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Comments int    `json:"comments,omitempty"`
	Collects int    `json:"collects,omitempty"`
}

// SubjectPerson is one line of the subject-persons relation source.
type SubjectPerson struct {
	PersonID  int32 `json:"person_id"`
	SubjectID int32 `json:"subject_id"`
	Position  int16 `json:"position"`
}

// SubjectRelation is one line of the subject-relations relation source.
type SubjectRelation struct {
	SubjectID        int32 `json:"subject_id"`
	RelationType     int16 `json:"relation_type"`
	RelatedSubjectID int32 `json:"related_subject_id"`
	Order            int   `json:"order,omitempty"`
}

// SubjectCharacter is one line of the subject-characters relation source.
type SubjectCharacter struct {
	CharacterID int32 `json:"character_id"`
	SubjectID   int32 `json:"subject_id"`
	Type        int16 `json:"type"`
	Order       int   `json:"order,omitempty"`
}

// RelatedPerson is a person credited on a subject, resolved at query time.
type RelatedPerson struct {
	ID       int32  `json:"id"`
	Name     string `json:"name,omitempty"` // Empty when the person record is missing
	Position int16  `json:"position"`
	Label    string `json:"label"`
}

// RelatedCharacter is a character appearing in a subject.
type RelatedCharacter struct {
	ID    int32  `json:"id"`
	Name  string `json:"name,omitempty"`
	Type  int16  `json:"type"`
	Label string `json:"label"`
}

// RelatedSubject is another subject linked to a subject.
type RelatedSubject struct {
	ID     int32  `json:"id"`
	Name   string `json:"name,omitempty"`
	NameCN string `json:"name_cn,omitempty"`
	Type   int16  `json:"relation_type"`
	Label  string `json:"label"`
}

// StoreStatus describes one entity store on disk.
type StoreStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Width int    `json:"width,omitempty"` // Index slot width in bytes
}

// RelationStatus describes one relation map.
type RelationStatus struct {
	Name string `json:"name"`
	Keys int    `json:"keys"`
}

// Status summarizes the state of an archive root.
type Status struct {
	Root      string           `json:"root"`
	Ready     bool             `json:"ready"`
	Stores    []StoreStatus    `json:"stores"`
	Relations []RelationStatus `json:"relations"`
}

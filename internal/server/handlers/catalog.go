// Package handlers implements the read-only catalog API.
package handlers

import (
	"context"

	"github.com/maruel/bgmarchive/internal/errors"
	"github.com/maruel/bgmarchive/internal/models"
)

// Catalog is the query surface of an ingested archive.
type Catalog interface {
	Ready() bool
	Status() models.Status
	Subject(id int64) *models.Subject
	Episode(id int64) *models.Episode
	Person(id int64) *models.Person
	Character(id int64) *models.Character
	Episodes(subjectID int64) []*models.Episode
	Persons(subjectID int64) []models.RelatedPerson
	Characters(subjectID int64) []models.RelatedCharacter
	Related(subjectID int64) []models.RelatedSubject
}

// IDRequest addresses one entity by id.
type IDRequest struct {
	ID int64 `path:"id"`
}

// StatusRequest is the request type for the archive status (empty).
type StatusRequest struct{}

// ListResponse wraps a list of items.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// CatalogHandler serves entity lookups and relation queries.
type CatalogHandler struct {
	catalog Catalog
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Status describes the stores and relations of the archive.
func (h *CatalogHandler) Status(ctx context.Context, req StatusRequest) (*models.Status, error) {
	st := h.catalog.Status()
	return &st, nil
}

// GetSubject returns a subject.
func (h *CatalogHandler) GetSubject(ctx context.Context, req IDRequest) (*models.Subject, error) {
	return lookup(h.catalog, "subject", h.catalog.Subject(req.ID))
}

// GetEpisode returns an episode.
func (h *CatalogHandler) GetEpisode(ctx context.Context, req IDRequest) (*models.Episode, error) {
	return lookup(h.catalog, "episode", h.catalog.Episode(req.ID))
}

// GetPerson returns a person.
func (h *CatalogHandler) GetPerson(ctx context.Context, req IDRequest) (*models.Person, error) {
	return lookup(h.catalog, "person", h.catalog.Person(req.ID))
}

// GetCharacter returns a character.
func (h *CatalogHandler) GetCharacter(ctx context.Context, req IDRequest) (*models.Character, error) {
	return lookup(h.catalog, "character", h.catalog.Character(req.ID))
}

// ListEpisodes returns the episodes of a subject.
func (h *CatalogHandler) ListEpisodes(ctx context.Context, req IDRequest) (*ListResponse[*models.Episode], error) {
	return list(h.catalog, req.ID, h.catalog.Episodes)
}

// ListPersons returns the staff of a subject.
func (h *CatalogHandler) ListPersons(ctx context.Context, req IDRequest) (*ListResponse[models.RelatedPerson], error) {
	return list(h.catalog, req.ID, h.catalog.Persons)
}

// ListCharacters returns the characters of a subject.
func (h *CatalogHandler) ListCharacters(ctx context.Context, req IDRequest) (*ListResponse[models.RelatedCharacter], error) {
	return list(h.catalog, req.ID, h.catalog.Characters)
}

// ListRelated returns the subjects linked to a subject.
func (h *CatalogHandler) ListRelated(ctx context.Context, req IDRequest) (*ListResponse[models.RelatedSubject], error) {
	return list(h.catalog, req.ID, h.catalog.Related)
}

func lookup[T any](c Catalog, resource string, v *T) (*T, error) {
	if v != nil {
		return v, nil
	}
	if !c.Ready() {
		return nil, errors.NotReady()
	}
	return nil, errors.NotFound(resource)
}

// list answers a relation query. A subject that is not in the archive is a
// 404, a known subject without related entries an empty list.
func list[T any](c Catalog, subjectID int64, fn func(int64) []T) (*ListResponse[T], error) {
	if _, err := lookup(c, "subject", c.Subject(subjectID)); err != nil {
		return nil, err
	}
	items := fn(subjectID)
	if items == nil {
		items = []T{}
	}
	return &ListResponse[T]{Items: items}, nil
}

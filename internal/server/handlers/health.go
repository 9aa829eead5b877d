package handlers

import "context"

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// HealthHandler reports liveness.
type HealthHandler struct {
	catalog Catalog
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(catalog Catalog) *HealthHandler {
	return &HealthHandler{catalog: catalog}
}

// Health returns the health status of the server. It succeeds even before the
// first snapshot is ingested.
func (h *HealthHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "ok", Ready: h.catalog.Ready()}, nil
}

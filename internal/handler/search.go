package handler

import (
	"net/http"
	"strconv"

	"boardmeta-api/internal/cache"
	"boardmeta-api/pkg/apierror"
	"boardmeta-api/pkg/response"
)

// maxSearchResults caps the client-requested result limit.
const maxSearchResults = 50

// SearchHandler exposes the catalog search cache.
type SearchHandler struct {
	search *cache.SearchCache
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(search *cache.SearchCache) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles GET /api/v1/games/search?q=...&max=...
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.Error(w, apierror.BadRequest("query parameter q is required"))
		return
	}

	limit := cache.DefaultMaxResults
	if raw := r.URL.Query().Get("max"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.Error(w, apierror.BadRequest("max must be a positive integer"))
			return
		}
		if v > maxSearchResults {
			v = maxSearchResults
		}
		limit = v
	}

	if !h.search.IsLoaded() {
		response.Error(w, apierror.ServiceUnavailable("catalog not loaded yet"))
		return
	}

	results := h.search.Search(query, limit)
	response.JSONWithMeta(w, http.StatusOK, results, response.Meta{
		Query: query,
		Limit: limit,
		Total: len(results),
	})
}

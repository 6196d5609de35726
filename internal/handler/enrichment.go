package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"boardmeta-api/internal/fetcher"
	"boardmeta-api/internal/repository"
	"boardmeta-api/internal/service"
	"boardmeta-api/pkg/apierror"
	"boardmeta-api/pkg/response"
)

// EnrichmentHandler drives single-game enrichment and the bulk job.
type EnrichmentHandler struct {
	service *service.EnrichmentService
}

// NewEnrichmentHandler creates a new enrichment handler.
func NewEnrichmentHandler(svc *service.EnrichmentService) *EnrichmentHandler {
	return &EnrichmentHandler{service: svc}
}

// EnrichGame handles POST /api/v1/games/{id}/enrich?force=true
func (h *EnrichmentHandler) EnrichGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, apierror.BadRequest("id must be a positive integer"))
		return
	}

	force := r.URL.Query().Get("force") == "true"

	data, err := h.service.EnrichGame(r.Context(), id, force)
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			response.Error(w, apierror.NotFound(fmt.Sprintf("game %d not found", id)))
			return
		}
		if fe, ok := fetcher.AsError(err); ok {
			response.Error(w, apierror.BadGateway(fe.Error()))
			return
		}
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}

	response.OK(w, data)
}

// StartBulk handles POST /api/v1/enrichment/start
func (h *EnrichmentHandler) StartBulk(w http.ResponseWriter, r *http.Request) {
	result := h.service.StartBulk()
	if !result.Started {
		response.Error(w, apierror.Conflict(result.Message))
		return
	}
	response.Accepted(w, result)
}

// StopBulk handles POST /api/v1/enrichment/stop
func (h *EnrichmentHandler) StopBulk(w http.ResponseWriter, r *http.Request) {
	stopped := h.service.StopBulk()
	response.OK(w, map[string]interface{}{
		"stop_requested": stopped,
	})
}

// BulkStatus handles GET /api/v1/enrichment/status
func (h *EnrichmentHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.service.BulkStatus())
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankrecon/internal/adapter/http/dto"
	"github.com/iho/bankrecon/internal/domain"
)

// PendingHandler handles pending item and notification requests.
type PendingHandler struct {
	runs RunService
}

// NewPendingHandler creates a new PendingHandler.
func NewPendingHandler(runs RunService) *PendingHandler {
	return &PendingHandler{runs: runs}
}

// Create opens a pending item on an unmatched system line.
func (h *PendingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePendingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	item, err := h.runs.CreatePending(r.Context(), chi.URLParam(r, "id"), req.ToUseCaseInput())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PendingItemFromDomain(item))
}

// Start moves a pending item to IN_PROGRESS.
func (h *PendingHandler) Start(w http.ResponseWriter, r *http.Request) {
	item, err := h.runs.StartPending(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pendingId"))
	h.respondItem(w, r, item, err)
}

// Resolve closes a pending item with a note.
func (h *PendingHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolvePendingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	item, err := h.runs.ResolvePending(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pendingId"), req.Note)
	h.respondItem(w, r, item, err)
}

// Summary groups the active pending items by area.
func (h *PendingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	groups, err := h.runs.PendingSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PendingSummaryFromDomain(groups))
}

// Notify sends each selected area its pending summary.
func (h *PendingHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req dto.NotifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	results, err := h.runs.Notify(r.Context(), chi.URLParam(r, "id"), req.ToUseCaseInput())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NotifyResultsFromUseCase(results))
}

func (h *PendingHandler) respondItem(w http.ResponseWriter, r *http.Request, item *domain.PendingItem, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PendingItemFromDomain(item))
}

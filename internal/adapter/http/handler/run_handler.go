package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankrecon/internal/adapter/http/dto"
	"github.com/iho/bankrecon/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RunHandler handles run-related HTTP requests.
type RunHandler struct {
	runs RunService
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runs RunService) *RunHandler {
	return &RunHandler{runs: runs}
}

// Create normalizes both uploads, matches them and stores a new run.
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRunRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.runs.CreateRun(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RunResultFromUseCase(result))
}

// List returns the runs the caller is a member of.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	runs, err := h.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RunsFromDomain(runs))
}

// Get returns the detail view of a run.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RunFromDomain(run))
}

// Summary returns the headline counts of a run.
func (h *RunHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runs.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SummaryFromDomain(summary))
}

// Update applies a partial metadata or status change.
func (h *RunHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateRunRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		respondError(w, r, err)
		return
	}

	run, err := h.runs.UpdateRun(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RunFromDomain(run))
}

// Delete removes a run.
func (h *RunHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.runs.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateSystem replaces the system side of a run.
func (h *RunHandler) UpdateSystem(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateSystemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.runs.UpdateSystemData(r.Context(), chi.URLParam(r, "id"), req.Rows, req.Mapping.ToDomain())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RunResultFromUseCase(result))
}

// Close makes a run read-only.
func (h *RunHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.respondRun(w, r)(h.runs.CloseRun(r.Context(), chi.URLParam(r, "id")))
}

// Reopen makes a closed run editable again.
func (h *RunHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.respondRun(w, r)(h.runs.ReopenRun(r.Context(), chi.URLParam(r, "id")))
}

// ExcludeConcepts adds exclusion terms.
func (h *RunHandler) ExcludeConcepts(w http.ResponseWriter, r *http.Request) {
	var req dto.ExcludeConceptsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	h.respondRun(w, r)(h.runs.ExcludeConcepts(r.Context(), chi.URLParam(r, "id"), req.Concepts))
}

// RemoveExcludedConcept drops an exclusion term.
func (h *RunHandler) RemoveExcludedConcept(w http.ResponseWriter, r *http.Request) {
	var req dto.RemoveConceptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	h.respondRun(w, r)(h.runs.RemoveExcludedConcept(r.Context(), chi.URLParam(r, "id"), req.Concept))
}

// ExcludeByCategory excludes every extract line classified into a category.
func (h *RunHandler) ExcludeByCategory(w http.ResponseWriter, r *http.Request) {
	var req dto.ExcludeCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	h.respondRun(w, r)(h.runs.ExcludeByCategory(r.Context(), chi.URLParam(r, "id"), req.CategoryID))
}

// SetMatch overrides the match of one system line.
func (h *RunHandler) SetMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.SetMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	h.respondRun(w, r)(h.runs.SetMatch(r.Context(), chi.URLParam(r, "id"), req.SystemLineID, req.ExtractLineIDs))
}

// SetMember adds a member or changes their role.
func (h *RunHandler) SetMember(w http.ResponseWriter, r *http.Request) {
	var req dto.SetMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	h.respondRun(w, r)(h.runs.SetMember(r.Context(), chi.URLParam(r, "id"), req.UserID, domain.MemberRole(req.Role)))
}

// RemoveMember revokes a member's access.
func (h *RunHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.respondRun(w, r)(h.runs.RemoveMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId")))
}

// AddMessage posts to the run's discussion thread.
func (h *RunHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	var req dto.AddMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	msg, err := h.runs.AddMessage(r.Context(), chi.URLParam(r, "id"), req.Body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.MessageFromDomain(msg))
}

// Export streams the run as an xlsx workbook.
func (h *RunHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.runs.ExportRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *RunHandler) respondRun(w http.ResponseWriter, r *http.Request) func(*domain.Run, error) {
	return func(run *domain.Run, err error) {
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.RunFromDomain(run))
	}
}

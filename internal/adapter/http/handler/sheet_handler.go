package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/iho/bankrecon/internal/adapter/http/dto"
	"github.com/iho/bankrecon/internal/adapter/spreadsheet"
	"github.com/iho/bankrecon/internal/domain"
)

// SheetHandler parses uploaded spreadsheets into rows for the run mapping step.
type SheetHandler struct {
	maxUploadBytes int64
}

// NewSheetHandler creates a new SheetHandler.
func NewSheetHandler(maxUploadBytes int64) *SheetHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &SheetHandler{maxUploadBytes: maxUploadBytes}
}

// Parse reads the multipart "file" field. "sheet" (or "sheetName") picks the
// worksheet and "headerRow" the 1-based header line.
func (h *SheetHandler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "validation", "file is too large")
			return
		}
		respondError(w, r, fmt.Errorf("%w: invalid multipart form: %v", domain.ErrValidation, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: file is required", domain.ErrValidation))
		return
	}
	defer file.Close()

	opts := spreadsheet.Options{Sheet: r.FormValue("sheet")}
	if opts.Sheet == "" {
		opts.Sheet = r.FormValue("sheetName")
	}
	if raw := strings.TrimSpace(r.FormValue("headerRow")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, r, fmt.Errorf("%w: headerRow must be a positive integer", domain.ErrValidation))
			return
		}
		opts.HeaderRow = n
	}

	result, err := spreadsheet.Parse(file, header.Filename, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SheetResponse{
		Sheets:  result.Sheets,
		Sheet:   result.Sheet,
		Columns: result.Columns,
		Rows:    result.Rows,
	})
}

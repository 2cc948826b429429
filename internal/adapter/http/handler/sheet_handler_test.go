package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/bankrecon/internal/adapter/http/dto"
)

func multipartRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/sheets/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSheetHandler_ParseCSV(t *testing.T) {
	h := NewSheetHandler(0)
	csv := "Banco Norte;;\nFecha;Concepto;Monto\n11/01/2024;Transferencia;100,00\n"
	req := multipartRequest(t, "extracto.csv", csv, map[string]string{"headerRow": "2"})
	rr := httptest.NewRecorder()

	h.Parse(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp dto.SheetResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Columns) != 3 || resp.Columns[2] != "Monto" {
		t.Fatalf("unexpected columns %v", resp.Columns)
	}
	if len(resp.Rows) != 1 || resp.Rows[0]["Monto"] != "100,00" {
		t.Fatalf("unexpected rows %+v", resp.Rows)
	}
}

func TestSheetHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		status   int
	}{
		{"missing file", "", "", nil, http.StatusBadRequest},
		{"unsupported type", "extracto.pdf", "%PDF", nil, http.StatusBadRequest},
		{"bad header row", "extracto.csv", "a,b\n1,2\n", map[string]string{"headerRow": "zero"}, http.StatusBadRequest},
		{"header row past the end", "extracto.csv", "a,b\n", map[string]string{"headerRow": "9"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSheetHandler(0)
			rr := httptest.NewRecorder()

			h.Parse(rr, multipartRequest(t, tt.filename, tt.content, tt.fields))

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSheetHandler_TooLarge(t *testing.T) {
	h := NewSheetHandler(512)
	rr := httptest.NewRecorder()

	h.Parse(rr, multipartRequest(t, "extracto.csv", string(bytes.Repeat([]byte("a,b\n"), 1000)), nil))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	ok := HealthCheck{Name: "postgres", Check: func(ctx context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }}

	rr := httptest.NewRecorder()
	NewHealthHandler(ok).Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	NewHealthHandler(ok, down).Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "redis unhealthy" {
		t.Fatalf("unexpected error %+v", resp)
	}

	rr = httptest.NewRecorder()
	NewHealthHandler().Liveness(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

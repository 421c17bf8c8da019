package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/export"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"count": 2}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"count":2}` {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid input"}`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Resource not found"),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"Resource not found"}`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("Something broke"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Something broke"}`,
		},
		{
			name:       "too many requests",
			builder:    TooManyRequestsError("slow down"),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":"slow down"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("Body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.Invalid("amount", core.ErrInvalidAmount), http.StatusUnprocessableEntity},
		{"wrapped validation", fmt.Errorf("create: %w", core.Invalid("date", core.ErrInvalidDate)), http.StatusUnprocessableEntity},
		{"empty report", export.ErrEmptyReport, http.StatusUnprocessableEntity},
		{"protected", &core.ProtectedEntityError{Kind: "category", Name: "Makanan"}, http.StatusForbidden},
		{"not found", &core.NotFoundError{Kind: "wallet", ID: "W9"}, http.StatusNotFound},
		{"version conflict", core.ErrVersionConflict, http.StatusConflict},
		{"ai not configured", &core.UpstreamError{Service: ai.ServiceName, Err: ai.ErrNotConfigured}, http.StatusServiceUnavailable},
		{"upstream", &core.UpstreamError{Service: "export", Err: errors.New("quota")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/wallets", nil)

	writeError(w, r, errors.New("sql: connection refused at 10.0.0.5"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Status code = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}

func TestWriteErrorIncludesField(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)

	writeError(w, r, core.Invalid("walletId", core.ErrUnknownWallet))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Status code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"field":"walletId"`) {
		t.Errorf("Body = %s", w.Body.String())
	}
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/export"
	applog "fintrack/internal/log"
)

// JSONResponseBuilder provides a fluent interface for building JSON responses.
type JSONResponseBuilder struct {
	status  int
	headers map[string]string
	body    any
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		status:  http.StatusOK,
		headers: make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.status = code
	return b
}

func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body with a 204 status writes no payload.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.status == http.StatusNoContent {
		w.WriteHeader(b.status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.status)
	if b.body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(b.body)
}

// Common responses

func OK(body any) *JSONResponseBuilder {
	return NewJSONResponse().Body(body)
}

func Created(body any) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusCreated).Body(body)
}

func ErrorResponse(status int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(status).Body(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	var (
		ve *core.ValidationError
		pe *core.ProtectedEntityError
		ne *core.NotFoundError
		ue *core.UpstreamError
	)
	switch {
	case errors.As(err, &ve), errors.Is(err, export.ErrEmptyReport):
		return http.StatusUnprocessableEntity
	case errors.As(err, &pe):
		return http.StatusForbidden
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.Is(err, core.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ai.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &ue):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError sends err with its mapped status. Internal failures are logged
// and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		body.Error = "internal error"
	}
	NewJSONResponse().Status(status).Body(body).Write(w)
}

// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses so every handler
// sets status, headers and the encoded body the same way.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ServiceError maps a service error to a response. Validation problems are
// echoed to the client; anything else is logged and reported as a storage
// failure with a generic message.
func ServiceError(r *http.Request, err error, action string) *JSONResponseBuilder {
	switch {
	case services.IsValidation(err):
		return BadRequestError(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError("transaction not found")
	case errors.Is(err, services.ErrSheetsDisabled):
		return ErrorResponse(http.StatusNotImplemented, "Google Sheets export is not configured")
	}

	ctx := r.Context()
	log.FromContext(ctx).ErrorContext(ctx, "Request failed",
		log.FieldOperation, action,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldError, err.Error())
	log.ReportError(ctx, err, map[string]string{"operation": action})
	return InternalServerError("could not " + action + ", please retry; if the problem persists check the server logs")
}

// decodeMessage renders body decoding errors without leaking JSON internals.
func decodeMessage(err error) string {
	if errors.Is(err, errBodyTooLarge) {
		return err.Error()
	}
	for _, target := range []error{core.ErrInvalidDate, core.ErrInvalidMonth, core.ErrInvalidAmount, core.ErrInvalidType} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "malformed JSON body"
}

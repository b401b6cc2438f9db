// Package http provides HTTP server and handler implementations.
//
// This file implements the builder for JSON responses and the mapping of
// ledger error kinds to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mybudget/internal/core"
	"mybudget/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(payload any) *JSONResponseBuilder {
	b.payload = payload
	return b
}

// Bytes encodes the payload. It is used when a response must be stored
// before it is written.
func (b *JSONResponseBuilder) Bytes() ([]byte, error) {
	if b.payload == nil {
		return nil, nil
	}
	return json.Marshal(b.payload)
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body, err := b.Bytes()
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		b.statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	writeRaw(w, b.statusCode, b.headers, body)
}

func writeRaw(w http.ResponseWriter, status int, headers map[string]string, body []byte) {
	for name, value := range headers {
		w.Header().Set(name, value)
	}
	if len(body) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
		_, _ = w.Write([]byte("\n"))
	}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Detail  string   `json:"detail,omitempty"`
	Count   int64    `json:"count,omitempty"`
	Similar []string `json:"similar,omitempty"`
}

// ErrorResponse creates an error response with the given status.
func ErrorResponse(statusCode int, message, detail string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message, Detail: detail})
}

func UnauthorizedError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", detail).
		Header("WWW-Authenticate", `Bearer realm="mybudget"`)
}

func NotFoundError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", detail)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "too many requests, retry later")
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.ErrValidation:
		return http.StatusBadRequest
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrReferential:
		return http.StatusUnprocessableEntity
	case core.ErrConflict, core.ErrInUse:
		return http.StatusConflict
	default:
		if core.IsRetryable(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

// ErrorFrom builds the response for a ledger error. Storage failures never
// expose their cause.
func ErrorFrom(err error) *JSONResponseBuilder {
	status := statusFor(err)
	body := ErrorBody{Error: core.KindName(core.KindOf(err))}

	var ce *core.Error
	if errors.As(err, &ce) && ce.Kind != core.ErrStorage {
		body.Detail = ce.Detail
		body.Count = ce.Count
		body.Similar = ce.Similar
	}
	if status == http.StatusServiceUnavailable {
		body.Detail = "the ledger is busy, retry the request"
		return NewJSONResponse().Status(status).Header("Retry-After", "1").Body(body)
	}
	return NewJSONResponse().Status(status).Body(body)
}

// writeError logs and writes err. Client errors log at warn, the rest at error.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFrom(err)
	ctx := r.Context()
	if resp.statusCode >= 500 {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, log.ComponentHTTP, op, nil)
	} else {
		fields := log.NewFields().WithError(err).WithOperation(op).ToSlice()
		log.FromContext(ctx).WarnContext(ctx, "Request rejected", fields...)
	}
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	NewJSONResponse().Status(status).Body(payload).Write(w)
}

// This file builds JSON responses and maps domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendy/internal/core"
	applog "spendy/internal/log"
)

// JSONResponseBuilder assembles a JSON response.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

// Error codes carried in the "error" field.
const (
	codeValidation   = "validation_error"
	codeUnauthorized = "unauthorized"
	codeNotFound     = "not_found"
	codeInternal     = "internal_error"
	codeRateLimited  = "rate_limited"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse builds the standard {"error", "message"} body.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: code, Message: message})
}

// classify maps err onto status, code and client-facing message. Unexpected
// errors only reveal their text when detail is set.
func classify(err error, detail bool) (int, string, string) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthorized, "user not authenticated"
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, codeValidation, err.Error()
	case errors.Is(err, core.ErrPlanNotFound):
		return http.StatusNotFound, codeNotFound, core.ErrPlanNotFound.Error()
	case errors.Is(err, core.ErrPlanLocked):
		return http.StatusConflict, core.ErrPlanLocked.Error(), "Cannot withdraw from a locked savings plan"
	case errors.Is(err, core.ErrInsufficientFunds):
		msg := core.ErrInsufficientFunds.Error()
		var ife *core.InsufficientFundsError
		if errors.As(err, &ife) {
			msg = ife.Error()
		}
		return http.StatusConflict, core.ErrInsufficientFunds.Error(), msg
	}
	msg := "internal server error"
	if detail {
		msg = err.Error()
	}
	return http.StatusInternalServerError, codeInternal, msg
}

// writeError logs server-side failures and writes the mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err, s.development)
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	ErrorResponse(status, code, msg).Write(w)
}

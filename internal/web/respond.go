// Package web holds the JSON plumbing shared by the HTTP handlers.
package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrBadRequest marks a request that could not be read.
var ErrBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

// Rule maps a sentinel error to a response status.
type Rule struct {
	Err    error
	Status int
}

// Responder writes JSON bodies and turns errors into status codes.
type Responder struct {
	rules  []Rule
	logger *slog.Logger
}

func NewResponder(logger *slog.Logger, rules ...Rule) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	rules = append([]Rule{{Err: ErrBadRequest, Status: http.StatusBadRequest}}, rules...)
	return &Responder{rules: rules, logger: logger}
}

// StatusOf returns the status of the first rule matching err, or 500.
func (rs *Responder) StatusOf(err error) int {
	for _, rule := range rs.rules {
		if errors.Is(err, rule.Err) {
			return rule.Status
		}
	}
	return http.StatusInternalServerError
}

// JSON writes v with the given status.
func (rs *Responder) JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.logger.ErrorContext(r.Context(), "failed to encode response", "path", r.URL.Path, "error", err)
	}
}

// Error writes {"error": "..."} with the status mapped from err. Unmapped
// errors are logged and their text is hidden from the client.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := rs.StatusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		rs.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	rs.JSON(w, r, status, map[string]string{"error": message})
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", ErrBadRequest, err)
	}
	return nil
}

// ParseID parses a UUID path parameter.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", ErrBadRequest, raw)
	}
	return id, nil
}

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"finitefield.org/retail-pos/internal/pos/failure"
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: status %d", e.Status)
}

// Unwrap classifies the response: a structured message is a rejection relayed verbatim,
// anything else is treated like a transport failure.
func (e *StatusError) Unwrap() error {
	if e.Message != "" {
		return failure.Rejection(e.Message)
	}
	return failure.Network(nil)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}

type errorPayload struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	se := &StatusError{Status: resp.StatusCode}

	var payload errorPayload
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		se.Code = strings.TrimSpace(payload.Code)
		se.Message = strings.TrimSpace(payload.Message)
		if se.Message == "" {
			se.Message = strings.TrimSpace(payload.Error)
		}
		if detail := firstFieldError(payload.Errors); detail != "" && se.Message == "" {
			se.Message = detail
		}
	}
	return se
}

func firstFieldError(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, msg := range fields[k] {
			if msg = strings.TrimSpace(msg); msg != "" {
				return msg
			}
		}
	}
	return ""
}

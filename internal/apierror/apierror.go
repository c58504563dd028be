// Package apierror renders domain errors as HTTP responses.
//
// Every failure leaves the API as
//
//	{"error": {"code": "<Kind>", "message": "..."}}
//
// with a status chosen from the error's domain.Kind.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pixelforge/forge/internal/domain"
)

// Body is the JSON envelope of an error response.
type Body struct {
	Error Detail `json:"error"`
}

// Detail carries the stable code and a human-readable message.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByKind = map[string]int{
	domain.KindInvalidCredentials:   http.StatusUnauthorized,
	domain.KindSessionExpired:       http.StatusUnauthorized,
	domain.KindSessionMalformed:     http.StatusUnauthorized,
	domain.KindInvalidSignature:     http.StatusUnauthorized,
	domain.KindAuthorizationDenied:  http.StatusForbidden,
	domain.KindNotFound:             http.StatusNotFound,
	domain.KindDuplicateEmail:       http.StatusConflict,
	domain.KindWrongCurrentPassword: http.StatusBadRequest,
	domain.KindValidationError:      http.StatusBadRequest,
	domain.KindPersistenceError:     http.StatusInternalServerError,
	domain.KindInternal:             http.StatusInternalServerError,
}

// Status returns the HTTP status for a domain error kind.
func Status(kind string) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Message is what the caller sees for err. Server-side failures are not
// described beyond their kind; client errors keep their text.
func Message(err error) string {
	kind := domain.Kind(err)
	switch kind {
	case domain.KindPersistenceError:
		return "storage is unavailable, try again later"
	case domain.KindInternal:
		return "internal server error"
	case domain.KindValidationError, domain.KindNotFound:
		return err.Error()
	}
	// Sentinel text only, so nothing about the account or token leaks.
	for _, sentinel := range []error{
		domain.ErrInvalidCredentials, domain.ErrSessionExpired, domain.ErrSessionMalformed,
		domain.ErrInvalidSignature, domain.ErrAuthorizationDenied, domain.ErrDuplicateEmail,
		domain.ErrWrongCurrentPassword,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// Write renders err with the status its kind maps to.
func Write(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	WriteJSON(w, Status(kind), Body{Error: Detail{Code: kind, Message: Message(err)}})
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

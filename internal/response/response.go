// Package response writes the API envelope: {success, data?, error?, code?}.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"voipgate-backend/internal/apperror"
)

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// JSON writes an arbitrary payload. Auth endpoints use this directly because
// they flatten token/user at the top level of the envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Data(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func Fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Envelope{Success: false, Error: msg})
}

func FailCode(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, Envelope{Success: false, Error: msg, Code: code})
}

// Error maps sentinel errors to their HTTP status. The error message is sent
// to the client, so callers must not wrap secrets into these errors.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperror.ErrInvalidCredentials):
		Fail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperror.ErrAccountInactive):
		Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, apperror.ErrForbidden):
		Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, apperror.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperror.ErrConflict):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperror.ErrInvalidMedia):
		FailCode(w, http.StatusBadRequest, "invalid_media1", err.Error())
	case errors.Is(err, apperror.ErrMediaNotPublic):
		FailCode(w, http.StatusBadRequest, "media1_not_public", err.Error())
	case errors.Is(err, apperror.ErrUpstreamUnavail):
		Fail(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, apperror.ErrUpstream):
		Fail(w, http.StatusBadGateway, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, "Internal server error")
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Akash1430/POCPortal/internal/auth"
)

// credentialFailureMessage is the only failure message login and refresh
// ever return.
const credentialFailureMessage = "invalid credentials"

// statusFor maps a failure kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAccountIneligible), errors.Is(err, auth.ErrPolicyViolation):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrConflict), errors.Is(err, auth.ErrAlreadyInactive):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeOK writes a successful envelope.
func writeOK[T any](w http.ResponseWriter, status int, data T, message string) {
	writeJSON(w, status, auth.NewResult(data, message))
}

// writeMessage writes a failed envelope with a fixed message.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, auth.Result[any]{Success: false, Message: message})
}

// writeFailure maps err to a status and envelope. Errors outside the
// taxonomy are logged and reported generically.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
	}
	writeJSON(w, status, auth.FailedResult(err))
}

// writeCredentialFailure reports a failed login or refresh. The cause is
// logged; the caller only learns that the credentials were not accepted.
// Malformed requests and internal faults keep their own status.
func (s *Server) writeCredentialFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch statusFor(err) {
	case http.StatusBadRequest, http.StatusInternalServerError:
		s.writeFailure(w, r, err)
		return
	}
	s.logger.Warn(op+" rejected",
		"kind", auth.Kind(err),
		"cause", err.Error(),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeMessage(w, http.StatusUnauthorized, credentialFailureMessage)
}

// writeBadRequest writes a 400 envelope.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusBadRequest, message)
}

// writeNotFound writes a 404 envelope.
func writeNotFound(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusNotFound, message)
}

// writeUnauthorized writes a 401 envelope.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusUnauthorized, message)
}

// writeForbidden writes a 403 envelope.
func writeForbidden(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusForbidden, message)
}

// writeInternalError writes a 500 envelope.
func writeInternalError(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusInternalServerError, message)
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

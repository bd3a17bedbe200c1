package api

import "net/http"

// Error is the unified result type handlers return before the boundary
// translates it into an HTTP response (spec §7: "components return
// errors through a unified result type; handlers translate into HTTP
// status codes at the boundary").
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func errStatus(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

var (
	errBadRequest        = func(msg string) *Error { return errStatus(http.StatusBadRequest, msg) }
	errForbidden         = func(msg string) *Error { return errStatus(http.StatusForbidden, msg) }
	errNotFound          = func(msg string) *Error { return errStatus(http.StatusNotFound, msg) }
	errLengthRequired    = func(msg string) *Error { return errStatus(http.StatusLengthRequired, msg) }
	errPayloadTooLarge   = func(msg string) *Error { return errStatus(http.StatusRequestEntityTooLarge, msg) }
	errInsufficientQuota = func(msg string) *Error { return errStatus(http.StatusInsufficientStorage, msg) }
	errInternal          = func(msg string) *Error { return errStatus(http.StatusInternalServerError, msg) }
)

// writeError renders a plaintext body at the given status, never a stack
// trace or file path (spec §7).
func writeError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(err.Status)
	_, _ = w.Write([]byte(err.Message))
}

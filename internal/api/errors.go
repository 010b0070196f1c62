package api

import (
	"encoding/json"
	"net/http"
)

// Error is an HTTP failure rendered as {"detail": ...}.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string { return e.Detail }

var (
	errUnauthorized     = &Error{Status: http.StatusUnauthorized, Detail: "Unauthorized"}
	errMethodNotAllowed = &Error{Status: http.StatusMethodNotAllowed, Detail: "Method Not Allowed"}
	errNotFound         = &Error{Status: http.StatusNotFound, Detail: "Not Found"}
	errTooLarge         = &Error{Status: http.StatusRequestEntityTooLarge, Detail: "Request Entity Too Large"}
)

func writeError(w http.ResponseWriter, e *Error) {
	writeJSON(w, e.Status, map[string]string{"detail": e.Detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

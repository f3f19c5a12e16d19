// Package respond mediates every handler response into the control plane's
// consistent JSON envelope. Reconstructed from scratch: the teacher's
// handlers import "github.com/aliskhannn/delayed-notifier/internal/api/respond"
// but its source is not part of the retrieval pack, so this package is
// rebuilt to match the call shape every handler in this repo relies on
// (respond.OK/Created/Fail), per SPEC_FULL §4.7's `{error, message?, details?}`
// error envelope.
package respond

import (
	"encoding/json"
	"net/http"
)

// envelope is the success-path JSON body: {"data": ...}.
type envelope struct {
	Data any `json:"data"`
}

// errEnvelope is the error-path JSON body: {"error", "message"?, "details"?}.
type errEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// OK writes a 200 response wrapping data.
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, envelope{Data: data})
}

// Created writes a 201 response wrapping data.
func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, envelope{Data: data})
}

// Fail writes an error response with the given status code.
func Fail(w http.ResponseWriter, status int, err error) {
	write(w, status, errEnvelope{Error: err.Error()})
}

// FailWithDetails writes an error response carrying extra diagnostic detail
// (e.g. validation error text) alongside the top-level message.
func FailWithDetails(w http.ResponseWriter, status int, message, details string) {
	write(w, status, errEnvelope{Error: message, Message: message, Details: details})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package pointshandlers

import (
	"encoding/json"
	"errors"
	"net/http"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
)

// Envelope is the response body of every HTTP route and NATS reply.
type Envelope struct {
	Success   bool              `json:"success"`
	Data      any               `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

func successEnvelope(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// errorEnvelope maps the error taxonomy onto a reply. Internal errors do
// not leak their cause.
func errorEnvelope(err error) Envelope {
	kind := pointsdomain.Kind(err)
	env := Envelope{Success: false, ErrorKind: kind}
	switch kind {
	case "validation":
		var verr *pointsdomain.ValidationError
		errors.As(err, &verr)
		env.Error = "validation failed"
		env.Details = verr.Fields
	case "not_found", "conflict":
		env.Error = err.Error()
	default:
		env.Error = "internal error"
	}
	return env
}

func statusFor(err error) int {
	switch pointsdomain.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

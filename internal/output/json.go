// Package output renders response envelopes. Every surface (CLI and HTTP)
// emits the same shape: {ok, data?, error?{kind, message, details?}}.
package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/dotcommander/scrum/internal/models"
)

// ErrorBody carries a rejection: a stable kind, a human message, and
// structured details including remediation steps when the error provides them.
type ErrorBody struct {
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	NextSteps []string          `json:"nextSteps,omitempty"`
}

// Envelope is the standard response shape.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// Success wraps data in a successful envelope.
func Success(data any) Envelope {
	return Envelope{OK: true, Data: data}
}

// Error wraps an error in a rejection envelope. Coordination errors keep
// their code and context; anything else maps to INTERNAL.
func Error(err error) Envelope {
	body := &ErrorBody{Kind: models.CodeInternal, Message: err.Error()}

	var coord models.CoordinationError
	if errors.As(err, &coord) {
		body.Kind = coord.ErrorCode()
		body.Details = coord.Context()
		body.NextSteps = coord.NextSteps()
	}
	return Envelope{OK: false, Error: body}
}

// Print writes a value as JSON to stdout.
// Output is compact by default to keep agent-consumed payloads small; set
// SCRUM_PRETTY_JSON=1 for humans.
func Print(v any) error {
	return Fprint(os.Stdout, v)
}

// Fprint writes a value as JSON to w.
func Fprint(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if os.Getenv("SCRUM_PRETTY_JSON") == "1" || os.Getenv("SCRUM_PRETTY_JSON") == "true" {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// PrintSuccess prints a success envelope.
func PrintSuccess(data any) error {
	return Print(Success(data))
}

// PrintError prints a rejection envelope.
func PrintError(err error) error {
	return Print(Error(err))
}

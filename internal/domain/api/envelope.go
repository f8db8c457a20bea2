// Package api defines the request/response shapes exchanged with the InstantMart backend.
package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/instantmart/admin-console/internal/errors"
)

// Generic messages surfaced when the backend gave nothing better.
const (
	MsgNetworkError   = "Unable to reach the server. Please check your connection and try again."
	MsgParseFailure   = "The server returned an unexpected response."
	MsgSessionExpired = "Your session has expired. Please log in again."
)

// RequestOptions describes one backend call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Body is JSON-encoded when non-nil. A json.RawMessage is sent as-is.
	Body any
	// Headers are added after the standard headers and may override them.
	Headers map[string]string
}

// MethodOrDefault returns Method or GET when empty.
func (o RequestOptions) MethodOrDefault() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return o.Method
}

// Envelope is the uniform result of a backend call. Transport, parse and
// session failures are folded into it rather than returned as Go errors.
type Envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Status  int                 `json:"status"`
	Err     *apperrors.AppError `json:"-"`
}

// Error returns the failure carried by the envelope, or nil on success.
func (e Envelope) Error() error {
	if e.Err != nil {
		return e.Err
	}
	if !e.Success {
		msg := e.Message
		if msg == "" {
			msg = http.StatusText(e.Status)
		}
		return apperrors.New(apperrors.ErrCodeRemote, msg)
	}
	return nil
}

// Failure builds an unsuccessful envelope from an AppError.
func Failure(status int, err *apperrors.AppError) Envelope {
	return Envelope{Status: status, Message: err.Message, Err: err}
}

// DecodeData unmarshals the envelope payload into T. A failed envelope returns its error.
func DecodeData[T any](env Envelope) (T, error) {
	var out T
	if err := env.Error(); err != nil {
		return out, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, apperrors.Wrap(err, apperrors.ErrCodeParse, MsgParseFailure)
	}
	return out, nil
}

// internal/app/features/shared/respond/respond.go

// Package respond writes the JSON envelope used by every API endpoint:
//
//	{"success": true,  "data": ...}
//	{"success": false, "error_code": "...", "error_message": "..."}
//
// Error codes and HTTP statuses come from apperr; internal causes are
// logged, never shown.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/system/apperr"
)

// maxBodyBytes bounds request bodies; the API carries small JSON payloads.
const maxBodyBytes = 1 << 20

type envelope struct {
	Success      bool   `json:"success"`
	Data         any    `json:"data,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// JSON writes a success envelope with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, data) }

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }

// Error writes an error envelope from a coded error. Internal errors are
// logged with their cause and shown as a generic message.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.Internal && log != nil {
		log.Error("request failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(code))
	_ = json.NewEncoder(w).Encode(envelope{
		Success:      false,
		ErrorCode:    string(code),
		ErrorMessage: apperr.MessageOf(err),
	})
}

// Decode reads the request body into dst. Unknown fields and trailing
// garbage are rejected so malformed clients fail loudly.
func Decode(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(err, apperr.InvalidArgument, "invalid request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.New(apperr.InvalidArgument, "invalid request body")
	}
	return nil
}

// DecodeOptional is Decode for endpoints whose body is entirely optional:
// an empty body leaves dst at its zero value.
func DecodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return Decode(r, dst)
}

package service

import (
	"errors"
	"strings"

	"github.com/router-for-me/LLMConfigService/internal/proxy"
	"github.com/router-for-me/LLMConfigService/internal/registry"
	"github.com/router-for-me/LLMConfigService/internal/store"
)

// Code is a stable error code exposed to callers.
type Code string

// Error codes returned across the service boundary.
const (
	CodeValidation Code = "validation_error"
	CodeNotFound   Code = "not_found"
	CodeStore      Code = "store_error"
)

// Error is the boundary-safe failure returned by every Service operation.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf returns the code carried by err, or "" when err is not a service error.
func CodeOf(err error) Code {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}

// translate classifies an internal error. Store failures keep their cause for logging
// but expose a generic message.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	switch {
	case errors.Is(err, registry.ErrValidation), errors.Is(err, proxy.ErrInvalidProxy):
		return &Error{Code: CodeValidation, Message: validationMessage(err), Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: "config not found", Err: err}
	default:
		return &Error{Code: CodeStore, Message: "storage failure", Err: err}
	}
}

// validationMessage strips sentinel prefixes so callers see only the reason.
func validationMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{registry.ErrValidation.Error() + ": ", proxy.ErrInvalidProxy.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

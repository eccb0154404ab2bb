// Package apperr defines the failure kinds surfaced by adapters, the parser and the
// assembly pipeline. Callers switch on Kind; users only ever see Message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindCredentialMissing  Kind = "credential_missing"
	KindTransport          Kind = "transport_error"
	KindUpstream           Kind = "upstream_error"
	KindValidation         Kind = "validation_error"
	KindPreconditionFailed Kind = "precondition_failed"
	KindParse              Kind = "parse_error"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal"
)

type Error struct {
	Kind     Kind
	Provider string
	// Status is the upstream HTTP status for KindUpstream.
	Status int
	// Line is the 1-based script line for KindParse.
	Line    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Provider != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Provider, e.Message, e.Err)
	case e.Provider != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Provider, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %s", e.Kind, e.Line, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func CredentialMissing(provider string) *Error {
	return &Error{
		Kind:     KindCredentialMissing,
		Provider: provider,
		Message:  fmt.Sprintf("no %s API key configured", provider),
	}
}

func Transport(provider string, err error) *Error {
	return &Error{
		Kind:     KindTransport,
		Provider: provider,
		Message:  fmt.Sprintf("could not reach %s", provider),
		Err:      err,
	}
}

// Upstream wraps a non-success provider response. An empty msg gets a generic one.
func Upstream(provider string, status int, msg string) *Error {
	if msg == "" {
		msg = fmt.Sprintf("%s request failed with status %d", provider, status)
	}
	return &Error{Kind: KindUpstream, Provider: provider, Status: status, Message: msg}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Precondition(format string, args ...any) *Error {
	return &Error{Kind: KindPreconditionFailed, Message: fmt.Sprintf(format, args...)}
}

func Parse(line int, format string, args ...any) *Error {
	return &Error{Kind: KindParse, Line: line, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message is the text safe to show a user. Unclassified errors are not leaked.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Kind == KindParse && e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindParse:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPreconditionFailed, KindCredentialMissing:
		return http.StatusConflict
	case KindUpstream, KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNetwork marks transport-class failures: dial, DNS, reset, timeout or abort.
var ErrNetwork = errors.New("network failure")

// GenericMessage is shown when a rejection carries no usable message.
const GenericMessage = "Something went wrong. Please try again."

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewBadGateway(message string, err error) error {
	return &DomainError{Code: "UPSTREAM_UNAVAILABLE", Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NetworkError wraps a transport failure so IsNetwork recognizes it.
func NetworkError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
}

// IsNetwork reports whether err is a transport-class failure worth retrying.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}

// IsUnauthenticated reports a definitive 401/403 answer from the backend.
func IsUnauthenticated(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.HTTPStatus == http.StatusUnauthorized || de.HTTPStatus == http.StatusForbidden
}

// FromResponse builds the application-class error for a non-2xx answer. The
// message is taken from the payload when one of the known shapes is present.
func FromResponse(status int, body []byte) *DomainError {
	de := &DomainError{
		Code:       codeForStatus(status),
		Message:    GenericMessage,
		HTTPStatus: status,
	}

	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Code    string          `json:"code"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return de
	}
	if payload.Code != "" {
		de.Code = payload.Code
	}
	if strings.TrimSpace(payload.Message) != "" {
		de.Message = payload.Message
	}
	if len(payload.Error) == 0 {
		return de
	}

	var text string
	if json.Unmarshal(payload.Error, &text) == nil {
		if strings.TrimSpace(text) != "" {
			de.Message = text
		}
		return de
	}
	var nested struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	if json.Unmarshal(payload.Error, &nested) == nil {
		if nested.Code != "" {
			de.Code = nested.Code
		}
		if strings.TrimSpace(nested.Message) != "" {
			de.Message = nested.Message
		}
		de.Details = nested.Details
	}
	return de
}

// UserMessage returns text safe to show to the person at the keyboard.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if IsNetwork(err) {
		return "The server could not be reached. Check your connection and try again."
	}
	return GenericMessage
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if IsNetwork(err) {
		if de, ok := NewBadGateway("backend unavailable", err).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	if status >= 500 {
		return "UPSTREAM_ERROR"
	}
	return "REQUEST_FAILED"
}

// WithMessage returns a copy of e carrying message, when non-empty.
func (e *DomainError) WithMessage(message string) *DomainError {
	out := *e
	if message != "" {
		out.Message = message
	}
	return &out
}

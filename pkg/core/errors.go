package core

import (
	"fmt"
)

// Error is the structured error surfaced to clients and logged by the
// gateway. One taxonomy is shared by the HTTP surface, the live session
// protocol, and the payment layer.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Cause     any       `json:"cause,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrModelPeer      ErrorType = "model_peer_error"
	ErrPayment        ErrorType = "payment_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// NewModelPeerError wraps a failure from the multimodal model connection.
func NewModelPeerError(underlying error) *Error {
	return &Error{
		Type:    ErrModelPeer,
		Message: fmt.Sprintf("model peer: %v", underlying),
		Cause:   underlying.Error(),
	}
}

// NewPaymentError wraps a failure from a payment executor.
func NewPaymentError(underlying error) *Error {
	return &Error{
		Type:    ErrPayment,
		Message: fmt.Sprintf("payment: %v", underlying),
		Cause:   underlying.Error(),
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if ue, ok := e.Cause.(error); ok {
		return ue
	}
	return nil
}

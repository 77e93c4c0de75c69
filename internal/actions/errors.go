package actions

import (
	"errors"
	"fmt"
)

// Common errors for action handling.
var (
	ErrCancelled    = errors.New("cancelled")
	ErrNotConnected = errors.New("not connected")
	ErrPeerNotFound = errors.New("peer not found")
	ErrPeerExists   = errors.New("peer already exists")
	ErrNoPeers      = errors.New("no peers configured")
)

// ActionError represents a structured error with a hint.
type ActionError struct {
	Message string
	Hint    string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s\n%s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// NewActionError creates a new ActionError.
func NewActionError(message, hint string) *ActionError {
	return &ActionError{Message: message, Hint: hint}
}

// WrapError wraps an error with a message and hint.
func WrapError(err error, message, hint string) *ActionError {
	return &ActionError{Message: message, Hint: hint, Err: err}
}

// PeerNotFoundError creates a peer not found error.
func PeerNotFoundError(uri string) *ActionError {
	return &ActionError{
		Message: fmt.Sprintf("peer '%s' not found", uri),
		Hint:    "Use 'meshtun peer list' to see configured peers",
		Err:     ErrPeerNotFound,
	}
}

// PeerExistsError creates a peer already exists error.
func PeerExistsError(uri string) *ActionError {
	return &ActionError{
		Message: fmt.Sprintf("peer '%s' is already configured", uri),
		Hint:    "Use 'meshtun peer list' to see configured peers",
		Err:     ErrPeerExists,
	}
}

// NoPeersError returns an error indicating no peers exist.
func NoPeersError() *ActionError {
	return &ActionError{
		Message: "no peers configured",
		Hint:    "Use 'meshtun peer add --uri tls://host:port' to add one",
		Err:     ErrNoPeers,
	}
}

// NotConnectedError returns an error indicating the tunnel is down.
func NotConnectedError() *ActionError {
	return &ActionError{
		Message: "not connected",
		Hint:    "Connect with: meshtun up",
		Err:     ErrNotConnected,
	}
}

package model

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Hierarchy errors
	ErrMalformedHierarchy = errors.New("malformed hierarchy")
	ErrHierarchyAbsent    = errors.New("hierarchy absent")
	ErrNotFound           = errors.New("not found")

	// Local validation errors, never sent to the backend
	ErrValidationRejected   = errors.New("validation rejected")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfirmationRequired = errors.New("confirmation required")

	// Backend errors
	ErrTransportFailure = errors.New("transport failure")
	ErrServerRejected   = errors.New("server rejected")

	// Session errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTokenExpired = errors.New("token expired")
)

type MalformedHierarchyError struct {
	Reason string
	NodeID string
}

func (e *MalformedHierarchyError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("malformed hierarchy: %s (node %q)", e.Reason, e.NodeID)
	}
	return "malformed hierarchy: " + e.Reason
}

func (e *MalformedHierarchyError) Unwrap() error {
	return ErrMalformedHierarchy
}

type RejectReason string

const (
	RejectSameNode   RejectReason = "SameNode"
	RejectNoOp       RejectReason = "NoOp"
	RejectCyclicMove RejectReason = "CyclicMove"
)

type ReorderRejectedError struct {
	Reason RejectReason
}

func (e *ReorderRejectedError) Error() string {
	switch e.Reason {
	case RejectSameNode:
		return "reorder rejected: cannot drop a node on itself"
	case RejectNoOp:
		return "reorder rejected: node is already under the target"
	case RejectCyclicMove:
		return "reorder rejected: cannot move a node under its own descendant"
	default:
		return "reorder rejected: " + string(e.Reason)
	}
}

func (e *ReorderRejectedError) Unwrap() error {
	return ErrValidationRejected
}

// ServerRejectedError carries a non-2xx backend answer. Message is the
// response body, shown to the user verbatim.
type ServerRejectedError struct {
	Status  int
	Message string
}

func (e *ServerRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("server rejected request (%d): %s", e.Status, e.Message)
}

func (e *ServerRejectedError) Is(target error) bool {
	switch target {
	case ErrServerRejected:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	default:
		return false
	}
}

type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransportFailure, e.Err}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	first := e.Fields[0]
	return fmt.Sprintf("invalid input: %s failed %s", first.Field, first.Rule)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error kinds surfaced by the shiftdesk session layer
// and the records client.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrCredential is returned when the broker rejects login credentials
	ErrCredential = "credential"

	// ErrNetwork is returned when a request fails at the transport level or times out
	ErrNetwork = "network"

	// ErrUnauthorized is returned when an unauthorized response could not be resolved by a refresh
	ErrUnauthorized = "unauthorized"

	// ErrValidation is returned when input is malformed
	ErrValidation = "validation"

	// ErrDeserialization is returned when a persisted session cannot be decoded
	ErrDeserialization = "deserialization"

	// ErrBroker is returned when the broker answers with an unexpected status
	ErrBroker = "broker"

	// ErrNotFound is returned when a record does not exist
	ErrNotFound = "not_found"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewCredentialError creates a new credential error
func NewCredentialError(message string, cause error) *Error {
	return NewError(ErrCredential, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *Error {
	return NewError(ErrNetwork, message, cause)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, cause error) *Error {
	return NewError(ErrUnauthorized, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *Error {
	return NewError(ErrValidation, message, cause)
}

// NewDeserializationError creates a new deserialization error
func NewDeserializationError(message string, cause error) *Error {
	return NewError(ErrDeserialization, message, cause)
}

// NewBrokerError creates a new broker error
func NewBrokerError(message string, cause error) *Error {
	return NewError(ErrBroker, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// TypeOf returns the type of the first *Error in err's chain, or "" if there is none.
func TypeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

func isType(err error, errorType string) bool {
	return err != nil && TypeOf(err) == errorType
}

// IsCredential checks if the error is a credential error
func IsCredential(err error) bool {
	return isType(err, ErrCredential)
}

// IsNetwork checks if the error is a network error
func IsNetwork(err error) bool {
	return isType(err, ErrNetwork)
}

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool {
	return isType(err, ErrUnauthorized)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return isType(err, ErrValidation)
}

// IsDeserialization checks if the error is a deserialization error
func IsDeserialization(err error) bool {
	return isType(err, ErrDeserialization)
}

// IsBroker checks if the error is a broker error
func IsBroker(err error) bool {
	return isType(err, ErrBroker)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrNotFound)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrInternal)
}

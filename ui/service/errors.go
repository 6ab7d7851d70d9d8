package service

import "errors"

// Service package errors.
var (
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("service: not found")

	// ErrInvalidInput indicates a malformed form or request body.
	ErrInvalidInput = errors.New("service: invalid input")
)

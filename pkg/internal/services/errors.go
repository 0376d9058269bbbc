package services

import "errors"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("access denied")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	// ErrNoOp marks a mutation that would change nothing, callers may treat it as success.
	ErrNoOp        = errors.New("nothing to change")
	ErrTransaction = errors.New("transaction failed")
)

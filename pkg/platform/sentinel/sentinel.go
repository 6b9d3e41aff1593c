// Package sentinel holds the infrastructure errors stores and journals return.
// Services translate them into vote outcomes or domain errors; they never reach
// clients directly.
package sentinel

import "errors"

var (
	// ErrNotFound: no voter, candidate or election with that id.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a write lost against an earlier write of different data,
	// such as a journal block whose index is taken by another hash.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: a one-way flag such as has_voted is already set.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: the write arrived out of order.
	ErrInvalidState = errors.New("invalid state")
)

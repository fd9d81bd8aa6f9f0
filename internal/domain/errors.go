package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrMarketClosed    = errors.New("market closed")
	ErrAlreadyResolved = errors.New("market already resolved")
	ErrNotResolved     = errors.New("market not resolved")
	ErrPersistence     = errors.New("persistence failure")
	ErrCorruptState    = errors.New("corrupt persisted state")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRateLimited     = errors.New("rate limited")
	ErrLockHeld        = errors.New("lock already held")
)

// InvalidInputError describe qué campo de una operación es inválido.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap permite errors.Is(err, ErrInvalidInput).
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// PersistenceError envuelve un fallo del backend de almacenamiento.
// Op es "load" o "save".
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

// Unwrap expone tanto ErrPersistence como la causa original.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// NewPersistenceError construye un PersistenceError; nil si err es nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ErrorKind clasifica un error de ledger para logs y métricas.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrMarketClosed):
		return "market_closed"
	case errors.Is(err, ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrCorruptState):
		return "corrupt_state"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}

package domain

import "errors"

var (
	ErrSerializationFailure     = errors.New("serialization failure")
	ErrNotFound                 = errors.New("not found")
	ErrConflict                 = errors.New("conflict")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrRoleMismatch             = errors.New("role mismatch")
	ErrRoleImmutable            = errors.New("role is immutable")
	ErrForbidden                = errors.New("forbidden")
	ErrEmailTaken               = errors.New("email already registered")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidInput             = errors.New("invalid input")
)

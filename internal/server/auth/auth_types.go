package auth

import "errors"

var (
	ErrAuthDisabled  = errors.New("auth is disabled")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("token secret is required")
	ErrEmptySubject  = errors.New("token subject is required")
)

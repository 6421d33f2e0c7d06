package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when registering an email that is already taken.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrInvalidInput marks malformed client input; its message may be shown to the caller.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is the single login failure. It never says whether
	// the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is the single gate rejection for protected routes.
	ErrUnauthenticated = errors.New("unauthenticated")
)

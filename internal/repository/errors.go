package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateLogin indicates another account already holds the login.
	ErrDuplicateLogin = errors.New("repository: login already used")
	// ErrDuplicateEmail indicates another account already holds the email.
	ErrDuplicateEmail = errors.New("repository: email already used")
)

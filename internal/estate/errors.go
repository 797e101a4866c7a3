package estate

import "errors"

var (
	ErrNotFound           = errors.New("estate: not found")
	ErrInvalidInput       = errors.New("estate: invalid input")
	ErrConflict           = errors.New("estate: conflict")
	ErrInvalidState       = errors.New("estate: invalid state")
	ErrInvalidCredentials = errors.New("estate: invalid credentials")
)

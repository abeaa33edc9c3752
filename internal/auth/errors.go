package auth

import "errors"

// Error kinds surfaced by the service. Callers distinguish them with
// errors.Is and map them to transport status codes; the wrapped detail
// string is what a user may see.
var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrConflict     = errors.New("auth: already exists")
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// ErrInvalidToken indicates a token failed decoding: bad signature,
// expired, malformed, or wrong type. The codec never reports which.
var ErrInvalidToken = errors.New("invalid token")
